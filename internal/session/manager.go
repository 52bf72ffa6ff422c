package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/singleflight"

	"github.com/kborae/catalog-crawler/internal/retry"
)

// Context is a live, authenticated browsing handle. It is exclusively owned
// by one caller at a time and is closed whenever the session it was built
// from decays.
type Context interface {
	NewPage() (playwright.Page, error)
	Close() error
}

// Engine abstracts the browser automation engine the manager drives. The
// production implementation lives in internal/browser.
type Engine interface {
	// BootstrapCookies navigates the site's bootstrap URL, waits out any
	// anti-bot challenge, and returns the resulting cookie jar.
	BootstrapCookies(ctx context.Context) ([]Cookie, error)
	// NewContext constructs an authenticated browsing context from state.
	NewContext(ctx context.Context, state *State) (Context, error)
}

// FatalError means bootstrap never succeeded. Without authentication the run
// cannot proceed, so callers abort on it rather than retrying items.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("session bootstrap failed: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ErrMissingCookies is returned when a bootstrap pass cleared the challenge
// but produced none of the cookies that make a session usable.
var ErrMissingCookies = errors.New("required session cookies absent after bootstrap")

type Config struct {
	RequiredCookies     []string
	FallbackCookie      string
	ExpiryBuffer        time.Duration
	BootstrapRetries    int
	BootstrapRetryDelay time.Duration
}

// Manager owns the bootstrap/refresh state machine. It validates stored
// state on demand, re-bootstraps when the state is absent or about to
// expire, and serializes refreshes so concurrent callers share one
// bootstrap instead of stampeding the target.
type Manager struct {
	store  *Store
	engine Engine
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

func NewManager(store *Store, engine Engine, cfg Config, logger *slog.Logger) *Manager {
	if cfg.BootstrapRetries < 1 {
		cfg.BootstrapRetries = 1
	}
	return &Manager{
		store:  store,
		engine: engine,
		cfg:    cfg,
		logger: logger.With("component", "session-manager"),
		now:    time.Now,
	}
}

// Context returns a ready-to-use authenticated browsing context. Stored
// state is reused when it satisfies the cookie and expiry invariants;
// otherwise a fresh bootstrap runs. Bootstrap failure is a *FatalError.
func (m *Manager) Context(ctx context.Context) (Context, error) {
	state, err := m.store.Load()
	if err == nil && m.usable(state) {
		bc, cerr := m.engine.NewContext(ctx, state)
		if cerr == nil {
			m.logger.Info("reusing stored session state", "captured_at", state.CapturedAt)
			return bc, nil
		}
		m.logger.Warn("stored state rejected by engine, re-bootstrapping", "error", cerr)
	} else if err != nil && !errors.Is(err, ErrNoState) {
		return nil, err
	}

	return m.bootstrap(ctx)
}

// Refresh closes the decayed context and re-bootstraps unconditionally,
// ignoring any cached state. Used when the page classifier reports session
// decay mid-run.
func (m *Manager) Refresh(ctx context.Context, old Context) (Context, error) {
	if old != nil {
		if err := old.Close(); err != nil {
			m.logger.Warn("failed to close stale context", "error", err)
		}
	}
	m.logger.Info("refreshing session")
	return m.bootstrap(ctx)
}

func (m *Manager) usable(state *State) bool {
	if !state.Valid(m.cfg.RequiredCookies, m.cfg.FallbackCookie) {
		m.logger.Info("stored session state missing required cookies")
		return false
	}
	if state.Expired(m.now(), m.cfg.ExpiryBuffer, m.cfg.RequiredCookies, m.cfg.FallbackCookie) {
		m.logger.Info("stored session state expired or within expiry buffer")
		return false
	}
	return true
}

// bootstrap acquires fresh state and persists it. Concurrent callers are
// collapsed onto a single in-flight bootstrap; each still gets its own
// context built from the shared state.
func (m *Manager) bootstrap(ctx context.Context) (Context, error) {
	v, err, _ := m.group.Do("bootstrap", func() (interface{}, error) {
		state, berr := m.bootstrapState(ctx)
		if berr != nil {
			return nil, &FatalError{Err: berr}
		}
		if serr := m.store.Save(state); serr != nil {
			return nil, &FatalError{Err: serr}
		}
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	return m.engine.NewContext(ctx, v.(*State))
}

func (m *Manager) bootstrapState(ctx context.Context) (*State, error) {
	policy := retry.Policy{
		MaxAttempts: m.cfg.BootstrapRetries,
		Delay:       m.cfg.BootstrapRetryDelay,
	}

	var state *State
	attempt := 0
	err := policy.Do(ctx, func() error {
		attempt++
		m.logger.Info("bootstrapping session", "attempt", attempt, "max", m.cfg.BootstrapRetries)

		cookies, err := m.engine.BootstrapCookies(ctx)
		if err != nil {
			return fmt.Errorf("bootstrap navigation: %w", err)
		}

		candidate := &State{Cookies: cookies, CapturedAt: m.now()}
		if !candidate.Valid(m.cfg.RequiredCookies, m.cfg.FallbackCookie) {
			return ErrMissingCookies
		}

		if _, ok := candidate.hasAll(m.cfg.RequiredCookies); !ok {
			m.logger.Warn("required cookies incomplete, proceeding on fallback session cookie",
				"fallback", m.cfg.FallbackCookie)
		}

		state = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("session bootstrap succeeded", "cookies", len(state.Cookies))
	return state, nil
}

func (s *State) hasAll(required []string) ([]string, bool) {
	var missing []string
	for _, name := range required {
		if _, ok := s.Cookie(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing, len(missing) == 0
}
