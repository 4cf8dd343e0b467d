package web

import (
	"math/rand/v2"
	"sync/atomic"
)

var userAgents = []string{
	// Desktop Chrome
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",

	// Desktop Safari
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",

	// Desktop Firefox
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:130.0) Gecko/20100101 Firefox/130.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:129.0) Gecko/20100101 Firefox/129.0",

	// Desktop Edge
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36 Edg/129.0.0.0",

	// Mobile
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_6_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Mobile Safari/537.36",
}

var uaCounter atomic.Uint64

// NextUserAgent returns a rotating user-agent string with some randomization.
func NextUserAgent() string {
	// 80% round-robin, 20% random
	if rand.Float64() < 0.2 {
		return userAgents[rand.IntN(len(userAgents))]
	}
	idx := uaCounter.Add(1)
	return userAgents[idx%uint64(len(userAgents))]
}

// userAgent returns fixed when set, otherwise the next rotating agent.
func userAgent(fixed string) string {
	if fixed != "" {
		return fixed
	}
	return NextUserAgent()
}
