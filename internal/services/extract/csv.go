package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
)

// CSVExtractor parses delimiter-separated text into rows and runs the
// same column mapper the workbook path uses.
type CSVExtractor struct {
	logger arbor.ILogger
}

// NewCSVExtractor creates a CSV extractor
func NewCSVExtractor(logger arbor.ILogger) *CSVExtractor {
	return &CSVExtractor{logger: logger}
}

// Extract sniffs the delimiter, parses the rows, and maps them to cards
func (e *CSVExtractor) Extract(data []byte) (*Result, error) {
	// Strip a UTF-8 BOM; exported spreadsheets often carry one
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	delimiter := sniffDelimiter(data)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv has no rows")
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}

	cards := CardsFromRows(rows)
	e.logger.Info().
		Str("delimiter", string(delimiter)).
		Int("rows", len(rows)).
		Int("cards", len(cards)).
		Msg("CSV extraction complete")

	return &Result{Text: b.String(), Cards: cards, Method: "csv"}, nil
}

// sniffDelimiter counts candidate separators on the first line
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	best := ','
	bestCount := bytes.Count(line, []byte{','})
	for _, cand := range []byte{';', '\t', '|'} {
		if n := bytes.Count(line, []byte{cand}); n > bestCount {
			best = rune(cand)
			bestCount = n
		}
	}
	return best
}
