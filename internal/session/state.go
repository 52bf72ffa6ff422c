// Package session owns the durable authentication state for one target site:
// the cookie set obtained by passing the site's anti-bot challenge, its
// file-backed store, and the manager that bootstraps and refreshes live
// browsing contexts from it.
package session

import (
	"time"
)

// Cookie mirrors the browser engine's cookie record. Expires is epoch
// seconds; zero or negative means a session cookie without an expiry.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// State is one captured authentication session. It is replaced wholesale on
// refresh, never patched in place.
type State struct {
	Cookies    []Cookie  `json:"cookies"`
	CapturedAt time.Time `json:"captured_at"`
}

// Cookie returns the named cookie, if present.
func (s *State) Cookie(name string) (Cookie, bool) {
	for _, c := range s.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

// Valid reports whether the state satisfies the cookie invariant: either
// every required cookie is present, or at minimum the fallback session
// cookie is.
func (s *State) Valid(required []string, fallback string) bool {
	if s == nil || len(s.Cookies) == 0 {
		return false
	}

	missing := false
	for _, name := range required {
		if _, ok := s.Cookie(name); !ok {
			missing = true
			break
		}
	}
	if !missing && len(required) > 0 {
		return true
	}

	if fallback != "" {
		if _, ok := s.Cookie(fallback); ok {
			return true
		}
	}

	return len(required) == 0 && fallback == ""
}

// Expired reports whether any authentication cookie expires within the
// safety buffer. A cookie about to lapse mid-run is as good as gone, so the
// buffer errs on the side of re-bootstrapping early. Session cookies
// (Expires <= 0) never expire.
func (s *State) Expired(now time.Time, buffer time.Duration, required []string, fallback string) bool {
	deadline := now.Add(buffer)

	relevant := func(name string) bool {
		if name == fallback {
			return true
		}
		for _, r := range required {
			if name == r {
				return true
			}
		}
		return false
	}

	for _, c := range s.Cookies {
		if c.Expires <= 0 || !relevant(c.Name) {
			continue
		}
		expiry := time.Unix(int64(c.Expires), 0)
		if expiry.Before(deadline) {
			return true
		}
	}

	return false
}
