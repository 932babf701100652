package interfaces

import (
	"context"
	"errors"
	"strings"

	"github.com/ternarybob/prospector/internal/models"
)

// MineStatus is the outcome class of a miner run
type MineStatus string

const (
	MineStatusSuccess MineStatus = "SUCCESS"
	MineStatusPartial MineStatus = "PARTIAL"
	MineStatusEmpty   MineStatus = "EMPTY"
	MineStatusError   MineStatus = "ERROR"
	MineStatusBlocked MineStatus = "BLOCKED"
	MineStatusDead    MineStatus = "DEAD"
)

// IsTerminal reports whether the status stops the miner fallback sequence.
// SUCCESS and DEAD are terminal; PARTIAL, BLOCKED, ERROR and EMPTY mean
// the orchestrator should try the next miner. Unknown statuses are treated
// as continue by the orchestrator with a logged warning.
func (s MineStatus) IsTerminal() bool {
	return s == MineStatusSuccess || s == MineStatusDead
}

// ErrBlockDetected is the sentinel outcome for sites refusing automated
// access. Downstream code matches with errors.Is or, for cross-process
// surfaces, the BLOCK_DETECTED message token.
var ErrBlockDetected = errors.New("BLOCK_DETECTED: site refuses automated access")

// IsBlockDetected matches the sentinel by identity or message token
func IsBlockDetected(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrBlockDetected) || strings.Contains(err.Error(), "BLOCK_DETECTED")
}

// MineMeta carries execution metadata for a miner run
type MineMeta struct {
	Source          string `json:"source"`
	ExecutionTimeMS int64  `json:"execution_time_ms"`
	Notes           string `json:"notes,omitempty"`
	Error           string `json:"error,omitempty"`
}

// MineResult is the uniform result every miner returns
type MineResult struct {
	Status         MineStatus    `json:"status"`
	Emails         []string      `json:"emails,omitempty"`
	Contacts       []models.Card `json:"contacts,omitempty"`
	ExtractedLinks []string      `json:"extracted_links,omitempty"`
	HTTPCode       int           `json:"http_code,omitempty"`
	Meta           MineMeta      `json:"meta"`
}

// Miner is the uniform extraction contract.
// Implementations must respect ctx cancellation at every navigation, page
// wait, and network round-trip, and must release browser resources on all
// exit paths.
type Miner interface {
	// Name identifies the miner for logging and stats
	Name() models.MinerName

	// Mine runs the extraction for one job and returns a result. A block
	// is reported either as Status BLOCKED or by returning an error
	// matching ErrBlockDetected; other errors map to Status ERROR.
	Mine(ctx context.Context, job *models.Job) (*MineResult, error)
}
