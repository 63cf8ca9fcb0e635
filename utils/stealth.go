package utils

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultUserAgents is the pool rotated for sites that need a varying
// User-Agent header.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.81 Safari/537.36",
	"Mozilla/5.0 (Windows NT 6.1; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.81 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.81 Safari/537.3",
}

// UserAgentPool picks uniformly at random from a fixed list.
type UserAgentPool struct {
	mu     sync.Mutex
	agents []string
	rnd    *rand.Rand
}

// NewUserAgentPool uses DefaultUserAgents when agents is empty and a
// time-seeded source when rnd is nil.
func NewUserAgentPool(agents []string, rnd *rand.Rand) *UserAgentPool {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &UserAgentPool{agents: agents, rnd: rnd}
}

func (p *UserAgentPool) Pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.agents[p.rnd.Intn(len(p.agents))]
}

// browserFlags are the Chrome switches for listing pages: Hungarian locale,
// no images, extensions or sync, automation marker hidden.
func browserFlags(headless bool) map[string]interface{} {
	flags := map[string]interface{}{
		"disable-blink-features":        "AutomationControlled",
		"blink-settings":                "imagesEnabled=false",
		"disable-extensions":            true,
		"disable-sync":                  true,
		"disable-dev-shm-usage":         true,
		"mute-audio":                    true,
		"lang":                          "hu-HU",
		"accept-lang":                   "hu-HU,hu,en",
		"disable-background-networking": true,
	}
	if headless {
		flags["headless"] = "new"
	}
	return flags
}

// StealthOpts returns the allocator options for BrowserFetcher.
func StealthOpts(headless bool, userAgent string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(1366, 768),
		chromedp.UserAgent(userAgent),
	}
	for name, value := range browserFlags(headless) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// hideWebDriverJS clears navigator.webdriver and reports the Hungarian
// language list the HTTP fetcher also sends.
const hideWebDriverJS = `
	Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
	Object.defineProperty(navigator, 'languages', { get: () => ['hu-HU', 'hu', 'en'] });
`

func HideWebDriver() chromedp.Action {
	return chromedp.Evaluate(hideWebDriverJS, nil)
}
