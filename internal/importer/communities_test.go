package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thriftscan/valuator/internal/database"
	"thriftscan/valuator/internal/models"
	"thriftscan/valuator/internal/storage"
)

func newRepo(t *testing.T) *storage.Repository {
	t.Helper()
	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return storage.NewRepository(db)
}

const sampleCSV = `name,comments,status,source_mode
ThriftStoreHauls,main source,active,json
r/Flipping,,,rss
https://www.reddit.com/r/VintageFashion/,,,
thriftstorehauls,dupe,,
bad name!,,,
Goodwill_Finds,,paused,
Handbags,,,html
`

func TestImport(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	summary, err := NewImporter(repo, models.SourceModeJSON).Import(ctx, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 7, summary.Rows)
	assert.Equal(t, 3, summary.Imported)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Len(t, summary.Errors, 3)

	all, err := repo.AllCommunities(ctx)
	require.NoError(t, err)
	modes := map[string]string{}
	for _, c := range all {
		modes[c.Name] = c.SourceMode
	}
	assert.Equal(t, map[string]string{
		"ThriftStoreHauls": "json",
		"Flipping":         "rss",
		"VintageFashion":   "json",
	}, modes)
}

func TestImport_MissingNameColumn(t *testing.T) {
	_, err := NewImporter(newRepo(t), "").Import(context.Background(), strings.NewReader("url,comments\nx,y\n"))
	assert.Error(t, err)
}

func TestImportFile_DownloadsWhenMissing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("name\nFlipping\n")) //nolint:errcheck
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "communities.csv")
	summary, err := NewImporter(newRepo(t), "").ImportFile(context.Background(), path, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)

	_, err = os.Stat(path)
	assert.NoError(t, err, "download is saved for next time")
}

func TestImportFile_NotFound(t *testing.T) {
	_, err := NewImporter(newRepo(t), "").ImportFile(context.Background(), filepath.Join(t.TempDir(), "none.csv"), "")
	assert.Error(t, err)
}

func TestCleanName(t *testing.T) {
	for raw, want := range map[string]string{
		"ThriftStoreHauls":                   "ThriftStoreHauls",
		" r/Flipping ":                       "Flipping",
		"/r/Flipping/":                       "Flipping",
		"https://reddit.com/r/AskReddit":     "AskReddit",
		"https://www.reddit.com/r/a_b_c/new": "",
	} {
		got, err := CleanName(raw)
		if want == "" {
			assert.Error(t, err, raw)
			continue
		}
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
}
