package interfaces

import (
	"errors"

	"github.com/ternarybob/prospector/internal/models"
)

// ErrNoUsableText means the payload was well-formed but every extraction
// method came back empty. A scanned PDF of images is the typical case;
// callers treat it as a partial outcome, not a failure.
var ErrNoUsableText = errors.New("no extraction method produced usable text")

// ExtractedFile is the outcome of a file extraction
type ExtractedFile struct {
	Text   string        // Full extracted text
	Cards  []models.Card // Structured contacts when the layout yielded them
	Method string        // Which extraction method produced the text
}

// FileExtractor converts uploaded or downloaded file payloads to text
// and structured contacts
type FileExtractor interface {
	Extract(jobType models.JobType, payload interface{}) (*ExtractedFile, error)
}
