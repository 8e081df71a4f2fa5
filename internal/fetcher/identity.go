package fetcher

import (
	"math/rand"
)

// Identity is the client fingerprint presented for one attempt
type Identity struct {
	UserAgent string `json:"user_agent"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Locale    string `json:"locale"`
}

// DefaultIdentities is used when the configuration names none
var DefaultIdentities = []Identity{
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.2478.80",
		Width:     1920, Height: 1080, Locale: "en-US",
	},
	{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Width:     1440, Height: 900, Locale: "en-US",
	},
	{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		Width:     1366, Height: 768, Locale: "en-GB",
	},
}

// shuffleIdentities returns a shuffled copy of pool; the input is left untouched
func shuffleIdentities(pool []Identity, rng *rand.Rand) []Identity {
	out := make([]Identity, len(pool))
	copy(out, pool)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
