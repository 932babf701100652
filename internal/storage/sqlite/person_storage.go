package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/models"
)

// PersonStorage implements canonical person and affiliation persistence
type PersonStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewPersonStorage creates a new SQLite person storage
func NewPersonStorage(db *SQLiteDB, logger arbor.ILogger) *PersonStorage {
	return &PersonStorage{db: db, logger: logger}
}

// UpsertPerson inserts or updates a person on (organizer_id, lower(email)).
// Names fill only where the stored value is empty and the incoming one is
// not; updated_at always refreshes. Returns the row id.
func (s *PersonStorage) UpsertPerson(ctx context.Context, person *models.Person) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.db.conn(ctx)
	now := time.Now().Unix()

	_, err := conn.ExecContext(ctx, `
		INSERT INTO persons (organizer_id, email, first_name, last_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organizer_id, lower(email)) DO UPDATE SET
			first_name = CASE WHEN persons.first_name = '' AND excluded.first_name != '' THEN excluded.first_name ELSE persons.first_name END,
			last_name = CASE WHEN persons.last_name = '' AND excluded.last_name != '' THEN excluded.last_name ELSE persons.last_name END,
			updated_at = excluded.updated_at`,
		person.OrganizerID, person.Email, person.FirstName, person.LastName, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert person: %w", err)
	}

	var id int64
	err = conn.QueryRowContext(ctx,
		`SELECT id FROM persons WHERE organizer_id = ? AND lower(email) = lower(?)`,
		person.OrganizerID, person.Email).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve person id: %w", err)
	}
	person.ID = id
	return id, nil
}

// UpsertAffiliation applies the composite-key conflict policy: rows with a
// company name deduplicate per (organizer_id, person_id, lower(company_name))
// with fill-if-missing fields and max confidence; empty-company rows always
// insert.
func (s *PersonStorage) UpsertAffiliation(ctx context.Context, aff *models.Affiliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.db.conn(ctx)
	now := time.Now().Unix()
	company := strings.TrimSpace(aff.CompanyName)

	if company == "" {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO affiliations (
				organizer_id, person_id, company_name, position, country_code,
				city, website, phone, source_type, source_ref, mining_job_id,
				confidence, raw, created_at, updated_at
			) VALUES (?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			aff.OrganizerID, aff.PersonID, aff.Position, aff.CountryCode,
			aff.City, aff.Website, aff.Phone, string(aff.SourceType),
			aff.SourceRef, aff.MiningJobID, aff.Confidence, aff.Raw, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert affiliation: %w", err)
		}
		return nil
	}

	_, err := conn.ExecContext(ctx, `
		INSERT INTO affiliations (
			organizer_id, person_id, company_name, position, country_code,
			city, website, phone, source_type, source_ref, mining_job_id,
			confidence, raw, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organizer_id, person_id, lower(company_name)) WHERE company_name != '' DO UPDATE SET
			position = CASE WHEN affiliations.position = '' THEN excluded.position ELSE affiliations.position END,
			country_code = CASE WHEN affiliations.country_code = '' THEN excluded.country_code ELSE affiliations.country_code END,
			city = CASE WHEN affiliations.city = '' THEN excluded.city ELSE affiliations.city END,
			website = CASE WHEN affiliations.website = '' THEN excluded.website ELSE affiliations.website END,
			phone = CASE WHEN affiliations.phone = '' THEN excluded.phone ELSE affiliations.phone END,
			source_ref = CASE WHEN affiliations.source_ref = '' THEN excluded.source_ref ELSE affiliations.source_ref END,
			mining_job_id = excluded.mining_job_id,
			confidence = MAX(affiliations.confidence, excluded.confidence),
			updated_at = excluded.updated_at`,
		aff.OrganizerID, aff.PersonID, company, aff.Position, aff.CountryCode,
		aff.City, aff.Website, aff.Phone, string(aff.SourceType),
		aff.SourceRef, aff.MiningJobID, aff.Confidence, aff.Raw, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert affiliation: %w", err)
	}
	return nil
}

// GetPersonByEmail looks up one person by organizer and email, nil when absent
func (s *PersonStorage) GetPersonByEmail(ctx context.Context, organizerID, email string) (*models.Person, error) {
	var p models.Person
	var createdAt, updatedAt int64

	err := s.db.conn(ctx).QueryRowContext(ctx, `
		SELECT id, organizer_id, email, first_name, last_name, created_at, updated_at
		FROM persons WHERE organizer_id = ? AND lower(email) = lower(?)`,
		organizerID, email).Scan(
		&p.ID, &p.OrganizerID, &p.Email, &p.FirstName, &p.LastName, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// ListAffiliations returns a person's affiliations, newest first
func (s *PersonStorage) ListAffiliations(ctx context.Context, organizerID string, personID int64) ([]*models.Affiliation, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx, `
		SELECT id, organizer_id, person_id, company_name, position, country_code,
			city, website, phone, source_type, source_ref, mining_job_id,
			confidence, raw, created_at, updated_at
		FROM affiliations
		WHERE organizer_id = ? AND person_id = ?
		ORDER BY updated_at DESC, id DESC`,
		organizerID, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list affiliations: %w", err)
	}
	defer rows.Close()

	var affiliations []*models.Affiliation
	for rows.Next() {
		var a models.Affiliation
		var sourceType string
		var createdAt, updatedAt int64

		err := rows.Scan(&a.ID, &a.OrganizerID, &a.PersonID, &a.CompanyName,
			&a.Position, &a.CountryCode, &a.City, &a.Website, &a.Phone,
			&sourceType, &a.SourceRef, &a.MiningJobID, &a.Confidence, &a.Raw,
			&createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affiliation: %w", err)
		}

		a.SourceType = models.SourceType(sourceType)
		a.CreatedAt = time.Unix(createdAt, 0)
		a.UpdatedAt = time.Unix(updatedAt, 0)
		affiliations = append(affiliations, &a)
	}
	return affiliations, rows.Err()
}
