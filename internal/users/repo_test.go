package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow-backend/pkg/db/models"
)

func setupUsersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	profiles := `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  customer_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(profiles).Error)
	require.NoError(t, db.Exec("DELETE FROM profiles").Error)
	return db
}

func TestFindByEmail(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	profile := &models.Profile{
		ID:    uuid.New(),
		Email: "writer@example.com",
	}
	require.NoError(t, db.Create(profile).Error)

	found, err := repo.FindByEmail(ctx, "writer@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, profile.ID, found.ID)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.FindByEmail(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestUpdateCustomerID(t *testing.T) {
	db := setupUsersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	profile := &models.Profile{
		ID:    uuid.New(),
		Email: "linkme@example.com",
	}
	require.NoError(t, db.Create(profile).Error)

	require.NoError(t, repo.UpdateCustomerID(ctx, profile, "cus_abc"))

	stored, err := repo.FindByEmail(ctx, "linkme@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.CustomerID)
	assert.Equal(t, "cus_abc", *stored.CustomerID)

	// Nil profile and empty id are accepted silently.
	require.NoError(t, repo.UpdateCustomerID(ctx, nil, "cus_abc"))
	require.NoError(t, repo.UpdateCustomerID(ctx, profile, ""))
}
