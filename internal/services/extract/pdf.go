package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
)

// PDFExtractor runs a chain of extraction methods against a PDF payload
// and accepts the first one that yields usable text. Structured contacts
// come from the table method when the document is a columnar directory.
type PDFExtractor struct {
	logger arbor.ILogger
}

// NewPDFExtractor creates a PDF extractor
func NewPDFExtractor(logger arbor.ILogger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

// Extract tries the table, layout, generic and raw methods in order
func (e *PDFExtractor) Extract(data []byte) (*Result, error) {
	if len(data) < 5 || !strings.HasPrefix(string(data[:5]), "%PDF-") {
		return nil, fmt.Errorf("payload is not a PDF (missing %%PDF header)")
	}

	pages, err := e.pageContents(data)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Content stream extraction failed, falling back to raw scan")
	}

	type method struct {
		name   string
		render func() string
	}
	methods := []method{
		{"table", func() string { return renderPages(pages, renderTable) }},
		{"layout", func() string { return renderPages(pages, renderLayout) }},
		{"generic", func() string { return renderPages(pages, renderGeneric) }},
		{"raw", func() string { return rawTextScan(data) }},
	}

	for _, m := range methods {
		if m.name != "raw" && len(pages) == 0 {
			continue
		}
		text, ok := usableText(m.render())
		if !ok {
			e.logger.Debug().Str("method", m.name).Msg("PDF method produced no usable text")
			continue
		}

		result := &Result{Text: text, Method: m.name}
		if m.name == "table" {
			result.Cards = ParseColumnarDirectory(text)
		}
		e.logger.Info().
			Str("method", m.name).
			Int("pages", len(pages)).
			Int("text_length", len(text)).
			Int("cards", len(result.Cards)).
			Msg("PDF extraction complete")
		return result, nil
	}

	return nil, interfaces.ErrNoUsableText
}

// pageContents writes the payload to a temp file, extracts per-page
// content streams with pdfcpu, and parses their text operators.
func (e *PDFExtractor) pageContents(data []byte) ([][]textRun, error) {
	tempFile, err := os.CreateTemp("", "prospector-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tempFile.Close()

	pdfCtx, err := api.ReadContextFile(tempPath)
	if err != nil {
		return nil, fmt.Errorf("read pdf context: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	outDir, err := os.MkdirTemp("", "prospector-pdf-")
	if err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempPath, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extract content streams: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(tempPath), ".pdf")
	pages := make([][]textRun, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		content, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("%s_Content_page_%d.txt", base, n)))
		if err != nil {
			// pdfcpu versions differ on the file name prefix
			content, err = os.ReadFile(filepath.Join(outDir, fmt.Sprintf("Content_page_%d.txt", n)))
		}
		if err != nil {
			continue
		}
		pages = append(pages, parseContentStream(string(content)))
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page content files found")
	}
	return pages, nil
}

// textRun is a positioned string from a content stream
type textRun struct {
	x, y float64
	text string
}

var (
	tdPattern = regexp.MustCompile(`(-?[\d.]+)\s+(-?[\d.]+)\s+Td`)
	tmPattern = regexp.MustCompile(`(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+Tm`)
)

// parseContentStream walks a decompressed content stream, tracking the
// text cursor through Td/TD/Tm operators and collecting the strings
// shown by Tj and TJ.
func parseContentStream(content string) []textRun {
	var runs []textRun
	var x, y float64
	inText := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "BT":
			inText = true
			x, y = 0, 0
			continue
		case line == "ET":
			inText = false
			continue
		}
		if !inText {
			continue
		}

		if m := tmPattern.FindStringSubmatch(line); len(m) == 7 {
			x, _ = strconv.ParseFloat(m[5], 64)
			y, _ = strconv.ParseFloat(m[6], 64)
		} else if m := tdPattern.FindStringSubmatch(line); len(m) == 3 {
			dx, _ := strconv.ParseFloat(m[1], 64)
			dy, _ := strconv.ParseFloat(m[2], 64)
			x += dx
			y += dy
		}

		if strings.HasSuffix(line, "Tj") || strings.HasSuffix(line, "TJ") {
			if text := decodeShownStrings(line); text != "" {
				runs = append(runs, textRun{x: x, y: y, text: text})
			}
		}
	}
	return runs
}

// decodeShownStrings joins all parenthesized literals on an operator
// line, handling the \( \) \\ escapes and octal codes.
func decodeShownStrings(line string) string {
	var b strings.Builder
	depth := 0
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if depth == 0 {
			if c == '(' {
				depth = 1
			}
			continue
		}
		if escaped {
			switch c {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '0', '1', '2', '3', '4', '5', '6', '7':
				end := i
				for end < len(line) && end-i < 3 && line[end] >= '0' && line[end] <= '7' {
					end++
				}
				if v, err := strconv.ParseInt(line[i:end], 8, 16); err == nil {
					b.WriteByte(byte(v))
				}
				i = end - 1
			default:
				b.WriteByte(c)
			}
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				b.WriteByte(' ')
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return strings.TrimSpace(b.String())
}

func renderPages(pages [][]textRun, render func([]textRun) string) string {
	parts := make([]string, 0, len(pages))
	for _, runs := range pages {
		if text := render(runs); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// lineGroup is runs sharing a y band, ordered left to right
type lineGroup struct {
	y    float64
	runs []textRun
}

func groupByLine(runs []textRun) []lineGroup {
	const yTolerance = 3.0

	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].y > sorted[j].y })

	var lines []lineGroup
	for _, r := range sorted {
		if n := len(lines); n > 0 && lines[n-1].y-r.y < yTolerance {
			lines[n-1].runs = append(lines[n-1].runs, r)
			continue
		}
		lines = append(lines, lineGroup{y: r.y, runs: []textRun{r}})
	}
	for i := range lines {
		sort.SliceStable(lines[i].runs, func(a, b int) bool { return lines[i].runs[a].x < lines[i].runs[b].x })
	}
	return lines
}

// renderTable preserves column alignment: wide x gaps between runs on a
// line become multi-space separators so the columnar parser can find
// the column boundaries.
func renderTable(runs []textRun) string {
	const columnGap = 30.0

	var b strings.Builder
	for _, line := range groupByLine(runs) {
		for i, r := range line.runs {
			if i > 0 {
				if r.x-line.runs[i-1].x > columnGap {
					b.WriteString("    ")
				} else {
					b.WriteByte(' ')
				}
			}
			b.WriteString(r.text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// renderLayout keeps reading order but collapses columns to single spaces
func renderLayout(runs []textRun) string {
	var b strings.Builder
	for _, line := range groupByLine(runs) {
		for i, r := range line.runs {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(r.text)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// renderGeneric ignores positioning entirely
func renderGeneric(runs []textRun) string {
	parts := make([]string, 0, len(runs))
	for _, r := range runs {
		parts = append(parts, r.text)
	}
	return strings.Join(parts, " ")
}

var rawTextBlockPattern = regexp.MustCompile(`(?s)BT(.*?)ET`)

// rawTextScan is the last resort for PDFs whose streams are stored
// uncompressed: scan the raw bytes for BT..ET blocks and pull the
// parenthesized literals out of them.
func rawTextScan(data []byte) string {
	var b strings.Builder
	for _, m := range rawTextBlockPattern.FindAllSubmatch(data, -1) {
		for _, line := range strings.Split(string(m[1]), "\n") {
			if text := decodeShownStrings(line); text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}
