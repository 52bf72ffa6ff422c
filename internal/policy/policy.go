// Package policy decides which outgoing browser requests are worth their
// bandwidth before the engine issues them.
package policy

import (
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"
)

type Decision int

const (
	Allow Decision = iota
	Block
)

func (d Decision) String() string {
	if d == Block {
		return "block"
	}
	return "allow"
}

// Extensions blocked by heuristic regardless of reported resource type.
var blockedExtensions = []string{
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".mp4", ".avi", ".mov", ".wmv", ".mp3", ".wav", ".ogg",
}

// Rules is an ordered request filter. Rule order matters: essential API
// whitelisting comes first so data-carrying XHRs survive every later rule,
// and the tracking deny-list comes after the type-based rules so it only
// catches what those let through.
type Rules struct {
	// EssentialPaths are URL substrings of APIs the extractors depend on;
	// matches are allowed unconditionally.
	EssentialPaths []string
	// AssetDomains are the target site's own image hosts. Images outside
	// them are blocked.
	AssetDomains []string
	// ImageKeywords, when set, further restrict allowed images to URLs
	// containing at least one keyword. Some catalogs populate item data as
	// a side effect of product-image loads, so image policy is tunable per
	// target rather than a global block.
	ImageKeywords []string
	// BlockedDomains is the advertising/analytics deny-list, matched by
	// substring.
	BlockedDomains []string
}

// Decide evaluates the rules in order, first match wins.
func (r Rules) Decide(rawURL, resourceType string) Decision {
	lower := strings.ToLower(rawURL)

	for _, p := range r.EssentialPaths {
		if p != "" && strings.Contains(rawURL, p) {
			return Allow
		}
	}

	if resourceType == "stylesheet" {
		return Block
	}

	if resourceType == "image" {
		if r.imageAllowed(lower) {
			return Allow
		}
		return Block
	}

	if resourceType == "font" || resourceType == "media" {
		return Block
	}

	for _, ext := range blockedExtensions {
		if strings.Contains(lower, ext) {
			return Block
		}
	}

	for _, domain := range r.BlockedDomains {
		if domain != "" && strings.Contains(lower, domain) {
			return Block
		}
	}

	return Allow
}

func (r Rules) imageAllowed(lowerURL string) bool {
	onAssetDomain := false
	for _, domain := range r.AssetDomains {
		if domain != "" && strings.Contains(lowerURL, domain) {
			onAssetDomain = true
			break
		}
	}
	if !onAssetDomain {
		return false
	}

	if len(r.ImageKeywords) == 0 {
		return true
	}
	for _, keyword := range r.ImageKeywords {
		if keyword != "" && strings.Contains(lowerURL, keyword) {
			return true
		}
	}
	return false
}

// Attach installs the rules as a route interceptor on a browser context, so
// every outgoing request is decided before the engine sends it.
func (r Rules) Attach(bc playwright.BrowserContext) error {
	err := bc.Route("**/*", func(route playwright.Route) {
		request := route.Request()
		if r.Decide(request.URL(), request.ResourceType()) == Block {
			route.Abort()
			return
		}
		route.Continue()
	})
	if err != nil {
		return fmt.Errorf("failed to install resource policy: %w", err)
	}
	return nil
}
