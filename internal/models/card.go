package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Card is a per-contact record produced by a miner, not yet merged or
// persisted. Field access is uniform across miners: Emails is ordered with
// the primary address first and empty when the miner found none.
type Card struct {
	CompanyName string   `json:"company_name,omitempty"`
	ContactName string   `json:"contact_name,omitempty"`
	JobTitle    string   `json:"job_title,omitempty"`
	Emails      []string `json:"emails,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Website     string   `json:"website,omitempty"`
	Country     string   `json:"country,omitempty"`
	City        string   `json:"city,omitempty"`
	Address     string   `json:"address,omitempty"`
	Confidence  int      `json:"confidence,omitempty"` // 0-100, 0 means unscored
	SourceURL   string   `json:"source_url,omitempty"`

	// Raw captures miner-specific provenance as opaque JSON
	Raw json.RawMessage `json:"raw,omitempty"`
}

// PrimaryEmail returns the first email or empty string
func (c *Card) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}

// HasIdentity reports whether the card is worth keeping without an email
func (c *Card) HasIdentity() bool {
	return strings.TrimSpace(c.CompanyName) != "" || strings.TrimSpace(c.ContactName) != ""
}

// MiningResult is the raw per-contact row written during mining.
// Appended during the job; only re-merge within the same job updates it
// (keyed by job_id + email).
type MiningResult struct {
	ID          int64     `json:"id"`
	JobID       string    `json:"job_id"`
	OrganizerID string    `json:"organizer_id"`
	SourceURL   string    `json:"source_url"`
	CompanyName string    `json:"company_name,omitempty"`
	ContactName string    `json:"contact_name,omitempty"`
	JobTitle    string    `json:"job_title,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Country     string    `json:"country,omitempty"`
	City        string    `json:"city,omitempty"`
	Address     string    `json:"address,omitempty"`
	Website     string    `json:"website,omitempty"`
	Emails      []string  `json:"emails"` // lower-case, primary first
	Confidence  int       `json:"confidence_score"` // 0-100
	Raw         string    `json:"raw,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EmailsJSON serializes the email list for storage
func (r *MiningResult) EmailsJSON() string {
	if len(r.Emails) == 0 {
		return "[]"
	}
	data, err := json.Marshal(r.Emails)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// EmailsFromJSON deserializes a stored email list
func EmailsFromJSON(data string) []string {
	if strings.TrimSpace(data) == "" {
		return nil
	}
	var emails []string
	if err := json.Unmarshal([]byte(data), &emails); err != nil {
		return nil
	}
	return emails
}
