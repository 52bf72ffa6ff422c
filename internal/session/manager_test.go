package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContext struct {
	mu     sync.Mutex
	closed bool
}

func (c *fakeContext) NewPage() (playwright.Page, error) {
	return nil, errors.New("fake context has no pages")
}

func (c *fakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeContext) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeEngine struct {
	mu         sync.Mutex
	bootstraps int
	cookies    []Cookie
	// bootstrapErrs is consumed one per call; once drained, calls succeed.
	bootstrapErrs []error
	contexts      []*fakeContext
}

func (e *fakeEngine) BootstrapCookies(ctx context.Context) ([]Cookie, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bootstraps++
	if len(e.bootstrapErrs) > 0 {
		err := e.bootstrapErrs[0]
		e.bootstrapErrs = e.bootstrapErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return e.cookies, nil
}

func (e *fakeEngine) NewContext(ctx context.Context, state *State) (Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	bc := &fakeContext{}
	e.contexts = append(e.contexts, bc)
	return bc, nil
}

func (e *fakeEngine) bootstrapCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bootstraps
}

func newTestManager(t *testing.T, engine *fakeEngine) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, testLogger())
	manager := NewManager(store, engine, Config{
		RequiredCookies:  []string{"cf_clearance", "__cf_bm", "OYSESSIONID"},
		FallbackCookie:   "OYSESSIONID",
		ExpiryBuffer:     5 * time.Minute,
		BootstrapRetries: 3,
	}, testLogger())
	return manager, path
}

func TestManagerBootstrapsWhenNoState(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID")}
	manager, path := newTestManager(t, engine)

	bc, err := manager.Context(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bc)

	assert.Equal(t, 1, engine.bootstrapCount())

	// Fresh state was persisted.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestManagerReusesStoredState(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID")}
	manager, _ := newTestManager(t, engine)

	future := float64(time.Now().Add(24 * time.Hour).Unix())
	state := &State{CapturedAt: time.Now()}
	for _, name := range []string{"cf_clearance", "__cf_bm", "OYSESSIONID"} {
		state.Cookies = append(state.Cookies, Cookie{Name: name, Value: "v", Expires: future})
	}
	require.NoError(t, manager.store.Save(state))

	_, err := manager.Context(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, engine.bootstrapCount(), "stored state should be reused without bootstrap")
}

func TestManagerRebootstrapsExpiredState(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID")}
	manager, _ := newTestManager(t, engine)

	soon := float64(time.Now().Add(time.Minute).Unix())
	state := &State{CapturedAt: time.Now()}
	for _, name := range []string{"cf_clearance", "__cf_bm", "OYSESSIONID"} {
		state.Cookies = append(state.Cookies, Cookie{Name: name, Value: "v", Expires: soon})
	}
	require.NoError(t, manager.store.Save(state))

	_, err := manager.Context(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, engine.bootstrapCount())
}

func TestManagerBootstrapExhaustionIsFatal(t *testing.T) {
	boom := errors.New("challenge never cleared")
	engine := &fakeEngine{
		cookies:       cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID"),
		bootstrapErrs: []error{boom, boom, boom},
	}
	manager, path := newTestManager(t, engine)

	_, err := manager.Context(context.Background())
	require.Error(t, err)

	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, engine.bootstrapCount())

	// Nothing was persisted for a failed bootstrap.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestManagerBootstrapRetriesThenSucceeds(t *testing.T) {
	engine := &fakeEngine{
		cookies:       cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID"),
		bootstrapErrs: []error{errors.New("transient")},
	}
	manager, _ := newTestManager(t, engine)

	_, err := manager.Context(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, engine.bootstrapCount())
}

func TestManagerBootstrapWithoutCookiesIsFatal(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("_ga")}
	manager, _ := newTestManager(t, engine)

	_, err := manager.Context(context.Background())
	require.Error(t, err)

	var fatal *FatalError
	assert.ErrorAs(t, err, &fatal)
	assert.ErrorIs(t, err, ErrMissingCookies)
}

func TestManagerBootstrapAcceptsFallbackOnly(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("OYSESSIONID")}
	manager, _ := newTestManager(t, engine)

	bc, err := manager.Context(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, bc)
}

func TestManagerRefreshClosesOldContext(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID")}
	manager, _ := newTestManager(t, engine)

	old, err := manager.Context(context.Background())
	require.NoError(t, err)

	fresh, err := manager.Refresh(context.Background(), old)
	require.NoError(t, err)
	require.NotNil(t, fresh)

	assert.True(t, old.(*fakeContext).isClosed())
	assert.NotSame(t, old, fresh)
	assert.Equal(t, 2, engine.bootstrapCount(), "refresh re-bootstraps unconditionally")
}

func TestManagerRefreshIgnoresStoredState(t *testing.T) {
	engine := &fakeEngine{cookies: cookiesNamed("cf_clearance", "__cf_bm", "OYSESSIONID")}
	manager, _ := newTestManager(t, engine)

	// Valid state on disk would satisfy Context, but Refresh must not use it.
	future := float64(time.Now().Add(24 * time.Hour).Unix())
	state := &State{CapturedAt: time.Now()}
	for _, name := range []string{"cf_clearance", "__cf_bm", "OYSESSIONID"} {
		state.Cookies = append(state.Cookies, Cookie{Name: name, Value: "v", Expires: future})
	}
	require.NoError(t, manager.store.Save(state))

	_, err := manager.Refresh(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, engine.bootstrapCount())
}
