package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sublet-scraper/models"
)

// CSVWriter dumps the seen set to a CSV file for inspection outside the tool.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write replaces the file with one row per entry.
//
// CSV columns: id, url, first_seen
func (w *CSVWriter) Write(entries []models.SeenEntry) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("could not create output dir: %w", err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Write([]string{"id", "url", "first_seen"})

	for _, e := range entries {
		firstSeen := ""
		if !e.FirstSeen.IsZero() {
			firstSeen = e.FirstSeen.Format(models.TimestampLayout)
		}
		writer.Write([]string{strconv.FormatInt(e.ID, 10), e.URL, firstSeen})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv write error: %w", err)
	}
	return file.Close()
}
