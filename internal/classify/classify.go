// Package classify decides what a rendered page actually is: real content,
// an anti-bot block page, an expired-session redirect, or a missing item.
// The decision is a pure function over collected page signals, so crawl
// control flow stays ordinary instead of exception-driven.
package classify

import (
	"errors"
	"strings"
)

type Verdict int

const (
	Valid Verdict = iota
	BotBlocked
	AuthExpired
	NotFound
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case BotBlocked:
		return "bot_blocked"
	case AuthExpired:
		return "auth_expired"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

var (
	ErrBotBlocked  = errors.New("page is an anti-bot block page")
	ErrAuthExpired = errors.New("page requires authentication, session expired")
	ErrNotFound    = errors.New("item not found")
)

// Err maps a verdict to its sentinel error, nil for Valid.
func (v Verdict) Err() error {
	switch v {
	case BotBlocked:
		return ErrBotBlocked
	case AuthExpired:
		return ErrAuthExpired
	case NotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Signals are the observations a classifier run is based on. Marker booleans
// record the presence of site-specific page elements; collection (including
// the one re-check for late-rendered content) happens in Collect.
type Signals struct {
	BodyText       string
	NotFoundMarker bool
	LoginMarker    bool
	ErrorMarker    bool
	ContentMarker  bool
}

// Fingerprints are the per-site text patterns and semantics the classifier
// matches against.
type Fingerprints struct {
	// BotBlockTexts are substrings of the rendered body that identify the
	// target's block page, matched case-insensitively.
	BotBlockTexts []string
	// MissingContentIsNotFound controls the fallback verdict when no error
	// marker fired but the expected content marker is absent. Sites whose
	// detail pages always carry the marker treat its absence as a missing
	// item; others treat it as still-valid.
	MissingContentIsNotFound bool
}

// Classify runs the ordered checks. Bot-block and not-found checks precede
// the generic error fallback so a blocked page is never misread as a
// missing item; an unrecognized error page is conservatively treated as an
// expired session, preferring a refresh-and-retry over a silent failure.
func (f Fingerprints) Classify(sig Signals) Verdict {
	body := strings.ToLower(sig.BodyText)
	for _, text := range f.BotBlockTexts {
		if text != "" && strings.Contains(body, strings.ToLower(text)) {
			return BotBlocked
		}
	}

	if sig.NotFoundMarker {
		return NotFound
	}

	if sig.LoginMarker {
		return AuthExpired
	}

	if sig.ErrorMarker {
		return AuthExpired
	}

	if !sig.ContentMarker && f.MissingContentIsNotFound {
		return NotFound
	}

	return Valid
}
