package sqlite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
)

func TestUpsertPersonFillIfMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewPersonStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// First sighting carries no name
	id1, err := storage.UpsertPerson(ctx, &models.Person{
		OrganizerID: "org-1",
		Email:       "alice.smith@acme.de",
	})
	require.NoError(t, err)
	require.NotZero(t, id1)

	// Second sighting fills the names; email differs only in case
	id2, err := storage.UpsertPerson(ctx, &models.Person{
		OrganizerID: "org-1",
		Email:       "Alice.Smith@Acme.de",
		FirstName:   "Alice",
		LastName:    "Smith",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "case-insensitive email matches the same row")

	// Third sighting must not overwrite the stored names
	_, err = storage.UpsertPerson(ctx, &models.Person{
		OrganizerID: "org-1",
		Email:       "alice.smith@acme.de",
		FirstName:   "Alicia",
		LastName:    "Smythe",
	})
	require.NoError(t, err)

	person, err := storage.GetPersonByEmail(ctx, "org-1", "ALICE.SMITH@ACME.DE")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, "Alice", person.FirstName)
	assert.Equal(t, "Smith", person.LastName)
	assert.Equal(t, "alice.smith@acme.de", person.Email, "original casing preserved")
}

func TestUpsertPersonScopedToOrganizer(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewPersonStorage(db, arbor.NewLogger())
	ctx := context.Background()

	id1, err := storage.UpsertPerson(ctx, &models.Person{OrganizerID: "org-1", Email: "a@x.com"})
	require.NoError(t, err)
	id2, err := storage.UpsertPerson(ctx, &models.Person{OrganizerID: "org-2", Email: "a@x.com"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "same email under different organizers is two persons")
}

func TestUpsertAffiliationDeduplicatesByCompany(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewPersonStorage(db, arbor.NewLogger())
	ctx := context.Background()

	personID, err := storage.UpsertPerson(ctx, &models.Person{OrganizerID: "org-1", Email: "a@acme.de"})
	require.NoError(t, err)

	require.NoError(t, storage.UpsertAffiliation(ctx, &models.Affiliation{
		OrganizerID: "org-1",
		PersonID:    personID,
		CompanyName: "Acme GmbH",
		SourceType:  models.SourceTypeMining,
		MiningJobID: "job-1",
		Confidence:  0.6,
	}))

	// Same company, different casing: fills position, keeps max confidence
	require.NoError(t, storage.UpsertAffiliation(ctx, &models.Affiliation{
		OrganizerID: "org-1",
		PersonID:    personID,
		CompanyName: "ACME GMBH",
		Position:    "Sales Manager",
		SourceType:  models.SourceTypeMining,
		MiningJobID: "job-2",
		Confidence:  0.4,
	}))

	affiliations, err := storage.ListAffiliations(ctx, "org-1", personID)
	require.NoError(t, err)
	require.Len(t, affiliations, 1)
	assert.Equal(t, "Acme GmbH", affiliations[0].CompanyName)
	assert.Equal(t, "Sales Manager", affiliations[0].Position)
	assert.Equal(t, 0.6, affiliations[0].Confidence)
	assert.Equal(t, "job-2", affiliations[0].MiningJobID, "latest job wins")
}

func TestUpsertAffiliationEmptyCompanyAlwaysInserts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewPersonStorage(db, arbor.NewLogger())
	ctx := context.Background()

	personID, err := storage.UpsertPerson(ctx, &models.Person{OrganizerID: "org-1", Email: "a@acme.de"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, storage.UpsertAffiliation(ctx, &models.Affiliation{
			OrganizerID: "org-1",
			PersonID:    personID,
			SourceType:  models.SourceTypeMining,
		}))
	}

	affiliations, err := storage.ListAffiliations(ctx, "org-1", personID)
	require.NoError(t, err)
	assert.Len(t, affiliations, 2)
}

func TestManagerWithTxRollsBack(t *testing.T) {
	tempDir := t.TempDir()
	manager, err := NewManager(arbor.NewLogger(), &common.SQLiteConfig{
		Path:          tempDir + "/test.db",
		BusyTimeoutMS: 5000,
	})
	require.NoError(t, err)
	defer manager.Close()

	ctx := context.Background()
	persons := manager.PersonStorage()

	err = manager.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := persons.UpsertPerson(txCtx, &models.Person{OrganizerID: "org-1", Email: "a@x.com"}); err != nil {
			return err
		}
		return fmt.Errorf("batch went bad")
	})
	require.Error(t, err)

	person, err := persons.GetPersonByEmail(ctx, "org-1", "a@x.com")
	require.NoError(t, err)
	assert.Nil(t, person, "rolled-back write must not be visible")

	// A clean transaction commits
	err = manager.WithTx(ctx, func(txCtx context.Context) error {
		_, err := persons.UpsertPerson(txCtx, &models.Person{OrganizerID: "org-1", Email: "b@x.com"})
		return err
	})
	require.NoError(t, err)

	person, err = persons.GetPersonByEmail(ctx, "org-1", "b@x.com")
	require.NoError(t, err)
	assert.NotNil(t, person)
}
