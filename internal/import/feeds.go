package importfeeds

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"traveler/traveler/internal/config"
)

const statusActive = "active"

// ReadSources reads a feed list from a CSV file. The header must contain a
// "url" column; "name", "type" and "status" are optional. Rows with an empty
// URL or a status other than "active" are skipped. Type defaults to rss.
func ReadSources(csvPath string) ([]config.Source, error) {
	log.Info().Str("csv", csvPath).Msg("Reading sources from CSV")

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	sources, err := parseSources(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", csvPath, err)
	}
	return sources, nil
}

func parseSources(csvData io.Reader) ([]config.Source, error) {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	urlIdx := findColumnIndex(header, "url")
	if urlIdx < 0 {
		return nil, errors.New("required column 'url' not found in CSV header")
	}
	nameIdx := findColumnIndex(header, "name")
	typeIdx := findColumnIndex(header, "type")
	statusIdx := findColumnIndex(header, "status")

	lineCount := 1 // header
	skipped := 0
	var sources []config.Source

	for {
		lineCount++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", lineCount).Msg("Error reading CSV line")
			skipped++
			continue
		}

		src := config.Source{
			Type: safeGetValue(record, typeIdx),
			Name: safeGetValue(record, nameIdx),
			URL:  safeGetValue(record, urlIdx),
		}
		if src.Type == "" {
			src.Type = config.SourceTypeRSS
		}

		if src.URL == "" {
			log.Debug().Int("line", lineCount).Msg("Skipping row with empty URL")
			skipped++
			continue
		}
		if status := safeGetValue(record, statusIdx); status != "" && !strings.EqualFold(status, statusActive) {
			log.Debug().Int("line", lineCount).Str("url", src.URL).Str("status", status).Msg("Skipping inactive source")
			skipped++
			continue
		}

		sources = append(sources, src)
	}

	log.Info().
		Int("total", lineCount-2).
		Int("sources", len(sources)).
		Int("skipped", skipped).
		Msg("Import summary")

	return sources, nil
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the trimmed value at index, or "" when the index is out of bounds.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
