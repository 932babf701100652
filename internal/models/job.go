package models

import (
	"encoding/json"
	"strings"
	"time"
)

// JobStatus represents the state of a mining job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusBlocked   JobStatus = "blocked"
)

// IsTerminal reports whether the status ends the job lifecycle
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusBlocked
}

// JobType classifies the job input
type JobType string

const (
	JobTypeURL   JobType = "url"
	JobTypePDF   JobType = "pdf"
	JobTypeExcel JobType = "excel"
	JobTypeWord  JobType = "word"
	JobTypeCSV   JobType = "csv"
	JobTypeOther JobType = "other"
)

// IsFile reports whether the job input is an uploaded file
func (t JobType) IsFile() bool {
	switch t {
	case JobTypePDF, JobTypeExcel, JobTypeWord, JobTypeCSV, JobTypeOther:
		return true
	}
	return false
}

// MiningMode selects the URL mining strategy
type MiningMode string

const (
	MiningModeQuick MiningMode = "quick"
	MiningModeFull  MiningMode = "full"
	MiningModeAI    MiningMode = "ai"
)

// Job represents a contact-mining job.
//
// Lifecycle: created by the API in pending; the orchestrator moves it to
// running with started_at set; terminal states (completed, failed, blocked)
// set completed_at and clear FileData.
type Job struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Name        string    `json:"name"`
	Type        JobType   `json:"type"`
	Input       string    `json:"input"`    // URL or filename
	Strategy    string    `json:"strategy"` // auto | playwright | http
	SiteProfile string    `json:"site_profile,omitempty"`
	Config      JobConfig `json:"config"`
	Status      JobStatus `json:"status"`
	Progress    float64   `json:"progress"`

	TotalPages     int `json:"total_pages"`
	ProcessedPages int `json:"processed_pages"`

	TotalFound            int `json:"total_found"`
	TotalEmailsRaw        int `json:"total_emails_raw"`
	TotalProspectsCreated int `json:"total_prospects_created"`

	// Stats carries free-form per-stage counters (miner outcomes, batch
	// errors, timing). Not indexed; keep it small.
	Stats map[string]interface{} `json:"stats,omitempty"`

	// Error holds a one-line cause when status is failed or blocked.
	Error string `json:"error,omitempty"`

	ParentJobID string `json:"parent_job_id,omitempty"`
	RetryJobID  string `json:"retry_job_id,omitempty"`

	// FileData holds the uploaded file payload for file jobs.
	// Cleared on every terminal transition; never returned by list endpoints.
	FileData []byte `json:"-"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JobConfig is the typed configuration record for a job.
// Unknown keys in the incoming JSON are ignored on decode.
type JobConfig struct {
	MiningMode       MiningMode   `json:"mining_mode,omitempty"`
	MaxPages         int          `json:"max_pages,omitempty"`
	MaxDetails       int          `json:"max_details,omitempty"`
	ListPageDelayMS  int          `json:"list_page_delay_ms,omitempty"`
	DetailDelayMS    int          `json:"detail_delay_ms,omitempty"`
	DetailURLPattern string       `json:"detail_url_pattern,omitempty"`
	PageSize         int          `json:"page_size,omitempty"`
	ForcePageCount   int          `json:"force_page_count,omitempty"`
	TotalTimeoutMS   int          `json:"total_timeout,omitempty"`
	SkipDetails      bool         `json:"skip_details,omitempty"`
	Login            *LoginConfig `json:"login,omitempty"`
}

// LoginConfig carries optional credentials for directory miners
type LoginConfig struct {
	LoginURL string `json:"login_url"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Mode returns the effective mining mode, defaulting to ai
func (c JobConfig) Mode() MiningMode {
	switch c.MiningMode {
	case MiningModeQuick, MiningModeFull, MiningModeAI:
		return c.MiningMode
	}
	return MiningModeAI
}

// EffectiveMaxPages clamps max_pages to [1, cap] with a default of 20
func (c JobConfig) EffectiveMaxPages(cap int) int {
	pages := c.MaxPages
	if pages <= 0 {
		pages = 20
	}
	if cap > 0 && pages > cap {
		pages = cap
	}
	return pages
}

// ListPageDelay returns the delay between list pages, floor 500ms, default 2s
func (c JobConfig) ListPageDelay() time.Duration {
	if c.ListPageDelayMS <= 0 {
		return 2 * time.Second
	}
	d := time.Duration(c.ListPageDelayMS) * time.Millisecond
	if d < 500*time.Millisecond {
		return 500 * time.Millisecond
	}
	return d
}

// DetailDelay returns the delay between detail pages with a default
func (c JobConfig) DetailDelay(def time.Duration) time.Duration {
	if c.DetailDelayMS <= 0 {
		return def
	}
	return time.Duration(c.DetailDelayMS) * time.Millisecond
}

// TotalTimeout returns the wall-clock job timeout with a default
func (c JobConfig) TotalTimeout(def time.Duration) time.Duration {
	if c.TotalTimeoutMS <= 0 {
		return def
	}
	return time.Duration(c.TotalTimeoutMS) * time.Millisecond
}

// ToJSON serializes JobConfig for database storage
func (c JobConfig) ToJSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JobConfigFromJSON deserializes JobConfig, ignoring unknown keys
func JobConfigFromJSON(data string) (JobConfig, error) {
	var config JobConfig
	if strings.TrimSpace(data) == "" {
		return config, nil
	}
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return config, err
	}
	return config, nil
}

// NormalizeType maps the raw job type to the routing family.
// Returns "file", "url", or "" for unknown types.
func NormalizeType(t JobType) string {
	if t == JobTypeURL {
		return "url"
	}
	if t.IsFile() {
		return "file"
	}
	return ""
}

// StatsJSON serializes the stats map for storage
func (j *Job) StatsJSON() string {
	if len(j.Stats) == 0 {
		return "{}"
	}
	data, err := json.Marshal(j.Stats)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// SetStat records a single stats counter, initializing the map when needed
func (j *Job) SetStat(key string, value interface{}) {
	if j.Stats == nil {
		j.Stats = make(map[string]interface{})
	}
	j.Stats[key] = value
}
