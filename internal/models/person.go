package models

import "time"

// Person is the canonical aggregated contact.
// Identity: (organizer_id, lower(email)) unique. Email case is preserved
// in the stored value; matching is always on the lowered form.
type Person struct {
	ID          int64     `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SourceType tags where an affiliation came from
type SourceType string

const (
	SourceTypeMining    SourceType = "mining"
	SourceTypeFile      SourceType = "file"
	SourceTypeDirectory SourceType = "directory"
	SourceTypeAI        SourceType = "ai"
)

// Affiliation is a person at an organization.
// Identity: (organizer_id, person_id, lower(company_name)) unique when
// company_name is non-null; null-company rows are never deduplicated.
type Affiliation struct {
	ID          int64      `json:"id"`
	OrganizerID string     `json:"organizer_id"`
	PersonID    int64      `json:"person_id"`
	CompanyName string     `json:"company_name,omitempty"`
	Position    string     `json:"position,omitempty"`
	CountryCode string     `json:"country_code,omitempty"` // ISO-3166 alpha-2
	City        string     `json:"city,omitempty"`
	Website     string     `json:"website,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	SourceType  SourceType `json:"source_type"`
	SourceRef   string     `json:"source_ref,omitempty"` // URL or filename
	MiningJobID string     `json:"mining_job_id,omitempty"`
	Confidence  float64    `json:"confidence"` // 0..1
	Raw         string     `json:"raw,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
