package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"), testLogger())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoState)
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewStore(path, testLogger())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoState)
}

func TestStoreSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, testLogger())

	captured := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	original := &State{
		Cookies: []Cookie{
			{Name: "cf_clearance", Value: "abc", Domain: ".example.com", Path: "/", Expires: 1717243200, HTTPOnly: true, Secure: true},
			{Name: "OYSESSIONID", Value: "def", Domain: "www.example.com", Path: "/", Expires: -1},
		},
		CapturedAt: captured,
	}

	require.NoError(t, store.Save(original))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, original.Cookies, loaded.Cookies)
	assert.True(t, original.CapturedAt.Equal(loaded.CapturedAt))

	// Expiry evaluation must be stable across a persistence round trip.
	now := time.Unix(1717243200, 0).Add(-time.Hour)
	required := []string{"cf_clearance"}
	assert.Equal(t,
		original.Expired(now, 5*time.Minute, required, "OYSESSIONID"),
		loaded.Expired(now, 5*time.Minute, required, "OYSESSIONID"))
}

func TestStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path, testLogger())

	require.NoError(t, store.Save(&State{Cookies: cookiesNamed("old"), CapturedAt: time.Now()}))
	require.NoError(t, store.Save(&State{Cookies: cookiesNamed("new"), CapturedAt: time.Now()}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Cookies, 1)
	assert.Equal(t, "new", loaded.Cookies[0].Name)
}

func TestStoreLockFileSitsBesideState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	store := NewStore(path, testLogger())

	require.NoError(t, store.Save(&State{Cookies: cookiesNamed("a"), CapturedAt: time.Now()}))

	_, err := os.Stat(path + ".lock")
	assert.NoError(t, err)
}
