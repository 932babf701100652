package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
)

// DOCXExtractor pulls text from Word documents. Modern .docx files are
// read by opening the archive and stripping the text runs out of the
// document part; anything else falls back to a raw UTF-8 string scan,
// which also covers legacy .doc payloads well enough for email mining.
type DOCXExtractor struct {
	logger arbor.ILogger
}

// NewDOCXExtractor creates a DOCX extractor
func NewDOCXExtractor(logger arbor.ILogger) *DOCXExtractor {
	return &DOCXExtractor{logger: logger}
}

// Extract tries the archive method, then the raw scan
func (e *DOCXExtractor) Extract(data []byte) (*Result, error) {
	if text, err := extractDocumentXML(data); err == nil {
		if cleaned, ok := usableText(text); ok {
			e.logger.Info().Int("text_length", len(cleaned)).Msg("DOCX archive extraction complete")
			return &Result{Text: cleaned, Method: "archive"}, nil
		}
	} else {
		e.logger.Debug().Err(err).Msg("DOCX archive extraction failed, trying raw scan")
	}

	if cleaned, ok := usableText(rawUTF8Scan(data)); ok {
		e.logger.Info().Int("text_length", len(cleaned)).Msg("DOCX raw scan complete")
		return &Result{Text: cleaned, Method: "raw"}, nil
	}

	return nil, interfaces.ErrNoUsableText
}

// docBody matches the WordprocessingML structure just deep enough to
// reach w:t text runs and paragraph boundaries.
type docBody struct {
	Paragraphs []docParagraph `xml:"body>p"`
}

type docParagraph struct {
	Runs []string `xml:"r>t"`
}

func extractDocumentXML(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	for _, f := range reader.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document part: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document part: %w", err)
		}

		var body docBody
		if err := xml.Unmarshal(raw, &body); err != nil {
			return "", fmt.Errorf("parse document part: %w", err)
		}

		var b strings.Builder
		for _, p := range body.Paragraphs {
			line := strings.TrimSpace(strings.Join(p.Runs, ""))
			if line != "" {
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("word/document.xml not found in archive")
}

// rawUTF8Scan keeps printable runs of at least four characters,
// discarding the binary noise between them.
func rawUTF8Scan(data []byte) string {
	const minRun = 4

	var b strings.Builder
	var run []rune
	flush := func() {
		if len(run) >= minRun {
			b.WriteString(string(run))
			b.WriteByte(' ')
		}
		run = run[:0]
	}

	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		i += size
		if r == utf8.RuneError && size == 1 {
			flush()
			continue
		}
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f) {
			run = append(run, r)
		} else {
			flush()
		}
	}
	flush()
	return b.String()
}
