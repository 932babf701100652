package extract

import (
	"bytes"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// Service routes file payloads to the right extractor by job type,
// normalizing the payload encoding first.
type Service struct {
	pdf    *PDFExtractor
	docx   *DOCXExtractor
	xlsx   *XLSXExtractor
	csv    *CSVExtractor
	logger arbor.ILogger
}

// NewService creates the extraction service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		pdf:    NewPDFExtractor(logger),
		docx:   NewDOCXExtractor(logger),
		xlsx:   NewXLSXExtractor(logger),
		csv:    NewCSVExtractor(logger),
		logger: logger,
	}
}

// Extract normalizes the payload and dispatches on job type. Types that
// do not declare a format (other) are sniffed from the content.
func (s *Service) Extract(jobType models.JobType, payload interface{}) (*Result, error) {
	data, err := common.NormalizeBuffer(payload)
	if err != nil {
		return nil, fmt.Errorf("normalize payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch jobType {
	case models.JobTypePDF:
		return s.pdf.Extract(data)
	case models.JobTypeWord:
		return s.docx.Extract(data)
	case models.JobTypeExcel:
		return s.xlsx.Extract(data)
	case models.JobTypeCSV:
		return s.csv.Extract(data)
	case models.JobTypeOther:
		return s.extractSniffed(data)
	default:
		return nil, fmt.Errorf("job type %s is not a file type", jobType)
	}
}

// extractSniffed picks the extractor from the payload's magic bytes
func (s *Service) extractSniffed(data []byte) (*Result, error) {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return s.pdf.Extract(data)
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// Office archives: try the workbook first, then the document part
		if result, err := s.xlsx.Extract(data); err == nil && result.Method == "workbook" {
			return result, nil
		}
		return s.docx.Extract(data)
	default:
		return s.csv.Extract(data)
	}
}

var _ interfaces.FileExtractor = (*Service)(nil)
