package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
)

// XLSXExtractor reads .xlsx workbooks by opening the archive directly:
// shared strings from xl/sharedStrings.xml, then each worksheet's cell
// grid. Legacy .xls binaries are not archives, so they go through the
// raw string scan instead.
type XLSXExtractor struct {
	logger arbor.ILogger
}

// NewXLSXExtractor creates an XLSX extractor
func NewXLSXExtractor(logger arbor.ILogger) *XLSXExtractor {
	return &XLSXExtractor{logger: logger}
}

// Extract returns the cell rows as tab-joined text plus the cards the
// column mapper built from them
func (e *XLSXExtractor) Extract(data []byte) (*Result, error) {
	rows, err := readWorkbookRows(data)
	if err != nil {
		e.logger.Debug().Err(err).Msg("Workbook parse failed, trying raw scan")
		if cleaned, ok := usableText(rawUTF8Scan(data)); ok {
			return &Result{Text: cleaned, Method: "raw"}, nil
		}
		return nil, fmt.Errorf("workbook parse failed and raw scan produced nothing: %w", err)
	}

	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}

	cards := CardsFromRows(rows)
	e.logger.Info().
		Int("rows", len(rows)).
		Int("cards", len(cards)).
		Msg("XLSX extraction complete")

	return &Result{Text: b.String(), Cards: cards, Method: "workbook"}, nil
}

type sharedStrings struct {
	Items []sharedItem `xml:"si"`
}

type sharedItem struct {
	Text string   `xml:"t"`
	Runs []string `xml:"r>t"`
}

func (s sharedItem) value() string {
	if len(s.Runs) > 0 {
		return strings.Join(s.Runs, "")
	}
	return s.Text
}

type worksheet struct {
	Rows []sheetRow `xml:"sheetData>row"`
}

type sheetRow struct {
	Cells []sheetCell `xml:"c"`
}

type sheetCell struct {
	Ref   string `xml:"r,attr"`
	Type  string `xml:"t,attr"`
	Value string `xml:"v"`
	// Inline strings live under is>t instead of v
	Inline string `xml:"is>t"`
}

// readWorkbookRows flattens every worksheet into one row list, in sheet
// file order
func readWorkbookRows(data []byte) ([][]string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	shared, err := readSharedStrings(reader)
	if err != nil {
		return nil, err
	}

	var sheetFiles []*zip.File
	for _, f := range reader.File {
		if strings.HasPrefix(f.Name, "xl/worksheets/sheet") && strings.HasSuffix(f.Name, ".xml") {
			sheetFiles = append(sheetFiles, f)
		}
	}
	if len(sheetFiles) == 0 {
		return nil, fmt.Errorf("no worksheets in archive")
	}
	sort.Slice(sheetFiles, func(i, j int) bool { return sheetFiles[i].Name < sheetFiles[j].Name })

	var rows [][]string
	for _, f := range sheetFiles {
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		var sheet worksheet
		if err := xml.Unmarshal(raw, &sheet); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.Name, err)
		}
		for _, r := range sheet.Rows {
			row := make([]string, 0, len(r.Cells))
			for _, c := range r.Cells {
				// Sparse rows: pad skipped columns from the cell reference
				for col := columnIndex(c.Ref); len(row) < col; {
					row = append(row, "")
				}
				row = append(row, cellValue(c, shared))
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func readSharedStrings(reader *zip.Reader) ([]string, error) {
	for _, f := range reader.File {
		if f.Name != "xl/sharedStrings.xml" {
			continue
		}
		raw, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("read shared strings: %w", err)
		}
		var ss sharedStrings
		if err := xml.Unmarshal(raw, &ss); err != nil {
			return nil, fmt.Errorf("parse shared strings: %w", err)
		}
		out := make([]string, len(ss.Items))
		for i, item := range ss.Items {
			out[i] = item.value()
		}
		return out, nil
	}
	// Workbooks with only inline or numeric cells have no shared strings part
	return nil, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func cellValue(c sheetCell, shared []string) string {
	switch c.Type {
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || idx < 0 || idx >= len(shared) {
			return ""
		}
		return shared[idx]
	case "inlineStr":
		return c.Inline
	default:
		return c.Value
	}
}

// columnIndex converts a cell reference like "C7" to a zero-based
// column number
func columnIndex(ref string) int {
	col := 0
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		if ch < 'A' || ch > 'Z' {
			break
		}
		col = col*26 + int(ch-'A') + 1
	}
	if col == 0 {
		return 0
	}
	return col - 1
}
