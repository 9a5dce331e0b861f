package coordinator

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frankenergie/frankenergie/pkg/storage"
	"github.com/frankenergie/frankenergie/pkg/storage/storagemock"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeEntriesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEntriesFile(t *testing.T) {
	path := writeEntriesFile(t, `
entries:
  - title: Home
    email: user@example.com
    siteReference: "1234AB 1"
    authToken: auth
    refreshToken: refresh
  - id: public
    title: Public prices
  - id: holiday
    disabled: true
`)
	entries, err := LoadEntriesFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, types.Authentication{AuthToken: "auth", RefreshToken: "refresh"}, entries[0].Authentication())
	assert.Equal(t, "1234AB 1", entries[0].SiteReference)
	assert.NotEmpty(t, entries[0].EntryID())
	assert.Equal(t, "public", entries[1].EntryID())
	assert.True(t, entries[1].Authentication().Empty())
	assert.True(t, entries[2].Disabled)
}

func TestLoadEntriesFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "invalid yaml",
			content: "entries: [",
			want:    "failed to parse",
		},
		{
			name: "refresh token only",
			content: `
entries:
  - email: a@example.com
    siteReference: s
    refreshToken: refresh
`,
			want: "refreshToken without authToken",
		},
		{
			name: "missing site",
			content: `
entries:
  - email: a@example.com
    authToken: auth
`,
			want: "siteReference",
		},
		{
			name: "duplicate id",
			content: `
entries:
  - email: a@example.com
    siteReference: s
  - email: a@example.com
    siteReference: s
`,
			want: "duplicate id",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadEntriesFile(writeEntriesFile(t, tc.content))
			assert.ErrorContains(t, err, tc.want)
		})
	}

	_, err := LoadEntriesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read")
}

func TestFileEntryID(t *testing.T) {
	a := FileEntry{Email: "user@example.com", SiteReference: "1234AB 1"}
	assert.Equal(t, a.EntryID(), a.EntryID())
	assert.NotEqual(t, a.EntryID(), FileEntry{Email: "user@example.com", SiteReference: "1234AB 2"}.EntryID())
	assert.Len(t, a.EntryID(), 36)
	assert.Equal(t, "fixed", FileEntry{ID: "fixed", Email: "user@example.com"}.EntryID())
}

func TestImportEntries(t *testing.T) {
	ctx := t.Context()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cipher := testCipher(t)
	auth := types.Authentication{AuthToken: "auth", RefreshToken: "refresh"}

	db := &storagemock.MockDatabase{}
	db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
		return e.ID == "existing"
	})).Return(fmt.Errorf("%w: existing", storage.ErrEntryExists))
	db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
		return e.ID == "public"
	})).Return(nil)
	db.On("CreateEntry", mock.Anything, mock.MatchedBy(func(e types.Entry) bool {
		if e.ID != "home" || e.Title != "Frank Energie" || !e.CreatedAt.Equal(now) {
			return false
		}
		got, err := cipher.Decrypt(ctx, e.EncryptedCredentials)
		return err == nil && got == auth
	})).Return(nil)

	created, err := ImportEntries(ctx, db, cipher, []FileEntry{
		{ID: "existing", Title: "Existing"},
		{ID: "public", Title: "Public"},
		{ID: "home", SiteReference: "site", AuthToken: "auth", RefreshToken: "refresh"},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	db.AssertNumberOfCalls(t, "CreateEntry", 3)

	t.Run("tokens without cipher", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		_, err := ImportEntries(ctx, db, nil, []FileEntry{{ID: "home", SiteReference: "site", AuthToken: "auth"}}, now)
		assert.ErrorContains(t, err, "no encryption key")
		db.AssertNotCalled(t, "CreateEntry", mock.Anything, mock.Anything)
	})

	t.Run("storage failure", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("CreateEntry", mock.Anything, mock.Anything).Return(fmt.Errorf("unavailable"))
		created, err := ImportEntries(ctx, db, nil, []FileEntry{{ID: "public"}}, now)
		assert.Error(t, err)
		assert.Zero(t, created)
	})
}
