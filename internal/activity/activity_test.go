package activity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cookiesentinel/internal/store"
)

func TestRecorderModeIsolation(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	defer st.Close()

	normal := NewRecorder(st, "")
	private := NewRecorder(st, ModeIncognito)

	normal.Record(ActionBannerHandled, "example.com", "platform:onetrust")
	private.Record(ActionCookiesDeleted, "example.com", "_ga")

	entries, err := normal.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionBannerHandled, entries[0].Action)
	assert.Equal(t, ModeNormal, entries[0].Mode)

	entries, err = private.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionCookiesDeleted, entries[0].Action)
}
