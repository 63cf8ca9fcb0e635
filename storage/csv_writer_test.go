package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"sublet-scraper/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export", "seen.csv")
	w := NewCSVWriter(path)

	err := w.Write([]models.SeenEntry{
		{ID: 1, URL: "https://example.com/a", FirstSeen: time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)},
		{ID: 2, URL: "https://example.com/b,c"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"id,url,first_seen\n"+
			"1,https://example.com/a,2024-05-01 09:30:00\n"+
			"2,\"https://example.com/b,c\",\n",
		string(data))
}

func TestCSVWriter_EmptyWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.csv")
	require.NoError(t, NewCSVWriter(path).Write(nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,url,first_seen\n", string(data))
}
