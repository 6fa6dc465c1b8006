// Package importer loads watched communities from a CSV file.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"thriftscan/valuator/internal/models"
)

// Store is the persistence surface used by the importer.
type Store interface {
	InsertCommunity(ctx context.Context, c *models.Community) (bool, error)
}

// Summary reports the outcome of an import.
type Summary struct {
	Rows       int
	Imported   int
	Duplicates int
	Errors     []string
}

// Importer handles the community import process
type Importer struct {
	store       Store
	defaultMode string
	http        *http.Client
}

// NewImporter creates a new community importer. defaultMode applies to
// rows without a source_mode column value.
func NewImporter(store Store, defaultMode string) *Importer {
	if defaultMode == "" {
		defaultMode = models.SourceModeJSON
	}
	return &Importer{
		store:       store,
		defaultMode: defaultMode,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// ImportFile imports communities from csvPath. When the file does not
// exist and remoteURL is set, the CSV is downloaded and saved to csvPath
// first.
func (i *Importer) ImportFile(ctx context.Context, csvPath, remoteURL string) (*Summary, error) {
	log.Info().Str("csv", csvPath).Msg("Starting community import")

	r, err := i.open(ctx, csvPath, remoteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer r.Close()

	summary, err := i.Import(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to import communities: %w", err)
	}

	log.Info().Msg("Import completed successfully")
	return summary, nil
}

func (i *Importer) open(ctx context.Context, csvPath, remoteURL string) (io.ReadCloser, error) {
	if _, err := os.Stat(csvPath); err == nil {
		log.Info().Str("path", csvPath).Msg("Using local CSV file")
		return os.Open(csvPath)
	}
	if remoteURL == "" {
		return nil, fmt.Errorf("CSV file not found: %s", csvPath)
	}

	log.Info().Str("url", remoteURL).Str("path", csvPath).Msg("Local CSV file not found. Downloading from remote source")
	if err := i.download(ctx, remoteURL, csvPath); err != nil {
		return nil, fmt.Errorf("failed to download CSV file: %w", err)
	}
	return os.Open(csvPath)
}

func (i *Importer) download(ctx context.Context, url, savePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := i.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}

	out, err := os.Create(savePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", savePath, err)
	}
	n, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(savePath)
		return err
	}

	log.Debug().Int64("bytes", n).Str("path", savePath).Msg("Downloaded and saved CSV file")
	return nil
}

var communityName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_]{1,20}$`)

// CleanName strips URL and "r/" prefixes and validates the result.
func CleanName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://www.reddit.com", "https://reddit.com", "/"} {
		name = strings.TrimPrefix(name, prefix)
	}
	name = strings.TrimPrefix(name, "r/")
	name = strings.Trim(name, "/")
	if !communityName.MatchString(name) {
		return "", fmt.Errorf("invalid community name %q", raw)
	}
	return name, nil
}

// Import reads a CSV with a required "name" column and optional
// "comments", "status" and "source_mode" columns. Bad rows are reported in
// the summary and do not stop the import.
func (i *Importer) Import(ctx context.Context, csvData io.Reader) (*Summary, error) {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	log.Debug().Strs("header", header).Msg("CSV header read")

	nameIdx := findColumnIndex(header, "name")
	if nameIdx < 0 {
		return nil, fmt.Errorf("required column 'name' not found in CSV header")
	}
	commentsIdx := findColumnIndex(header, "comments")
	statusIdx := findColumnIndex(header, "status")
	modeIdx := findColumnIndex(header, "source_mode")

	summary := &Summary{}
	line := 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Error reading CSV line")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		summary.Rows++

		c, err := i.rowToCommunity(record, nameIdx, commentsIdx, statusIdx, modeIdx)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		logger := log.With().Int("line", line).Str("community", c.Name).Logger()
		inserted, err := i.store.InsertCommunity(ctx, c)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to insert community")
			summary.Errors = append(summary.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if !inserted {
			logger.Warn().Msg("Duplicate community")
			summary.Duplicates++
			continue
		}
		summary.Imported++
		logger.Debug().Msg("Community inserted successfully")
	}

	log.Info().
		Int("rows", summary.Rows).
		Int("imported", summary.Imported).
		Int("duplicates", summary.Duplicates).
		Int("errors", len(summary.Errors)).
		Msg("Import summary")
	return summary, nil
}

func (i *Importer) rowToCommunity(record []string, nameIdx, commentsIdx, statusIdx, modeIdx int) (*models.Community, error) {
	name, err := CleanName(safeGetValue(record, nameIdx).String)
	if err != nil {
		return nil, err
	}

	c := models.NewCommunity()
	c.Name = name
	c.SourceMode = i.defaultMode
	c.Comments = safeGetValue(record, commentsIdx)

	if mode := safeGetValue(record, modeIdx); mode.Valid {
		m := strings.ToLower(mode.String)
		if m != models.SourceModeJSON && m != models.SourceModeRSS {
			return nil, fmt.Errorf("invalid source_mode %q", mode.String)
		}
		c.SourceMode = m
	}
	if status := safeGetValue(record, statusIdx); status.Valid {
		st := strings.ToLower(status.String)
		switch st {
		case models.CommunityActive, models.CommunityFailed, models.CommunityRateLimited:
			c.Status = st
		default:
			return nil, fmt.Errorf("invalid status %q", status.String)
		}
	}
	return c, nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns a sql.NullString from a record at the specified index.
// If the index is out of bounds or the value is empty, it returns an invalid NullString.
func safeGetValue(record []string, index int) sql.NullString {
	if index >= 0 && index < len(record) {
		if v := strings.TrimSpace(record[index]); v != "" {
			return sql.NullString{String: v, Valid: true}
		}
	}
	return sql.NullString{}
}
