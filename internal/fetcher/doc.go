// Package fetcher acquires chamber calendar pages.
//
// Acquire walks a shuffled pool of client identities, retrying each one a
// bounded number of times with a jittered delay, and hands every attempt to
// a Renderer: a plain HTTP client for static pages or a headless browser for
// pages that need interactions before their agendas are in the DOM.
package fetcher
