package fetcher

// attemptPlan is the retry schedule of one Acquire call: up to maxRetries
// attempts per identity, identities in pool order.
type attemptPlan struct {
	identities []Identity
	maxRetries int

	current int // index into identities
	tries   int // attempts made with identities[current]
	total   int
}

func newAttemptPlan(identities []Identity, maxRetries int) *attemptPlan {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &attemptPlan{identities: identities, maxRetries: maxRetries}
}

// next returns the identity for the next attempt and whether it is a fresh identity.
// ok is false once every identity has used up its retries.
func (p *attemptPlan) next() (id Identity, switched bool, ok bool) {
	if p.tries >= p.maxRetries {
		p.current++
		p.tries = 0
	}
	if p.current >= len(p.identities) {
		return Identity{}, false, false
	}
	switched = p.tries == 0 && p.current > 0
	p.tries++
	p.total++
	return p.identities[p.current], switched, true
}

// attempts returns the number of attempts handed out so far
func (p *attemptPlan) attempts() int {
	return p.total
}

// capacity is the most attempts the plan will ever hand out
func (p *attemptPlan) capacity() int {
	return len(p.identities) * p.maxRetries
}
