package persistent

import (
	"context"
	"testing"

	"troc-marketplace/services/listing/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqlite has no text[] column type, so the table is declared by hand with the
// photos array stored in its postgres text form.
const createMarketplaceItems = `
CREATE TABLE marketplace_items (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	title             TEXT,
	description       TEXT,
	price             REAL,
	category          TEXT NOT NULL,
	location          TEXT,
	photos            TEXT,
	type              TEXT NOT NULL,
	trade_preferences TEXT,
	boosted           BOOLEAN NOT NULL DEFAULT 0,
	is_active         BOOLEAN NOT NULL DEFAULT 1,
	created_at        DATETIME,
	updated_at        DATETIME,
	deleted_at        DATETIME
)`

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection would otherwise get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(createMarketplaceItems).Error)
	return db
}

func saleRecord(userID string) *entity.ListingRecord {
	price := 25.0
	return &entity.ListingRecord{
		UserID:   userID,
		Title:    "Calculus textbook",
		Price:    &price,
		Category: "books",
		Location: "Lyon",
		Photos:   []string{"https://cdn.test/u1/171234-a.png", "https://cdn.test/u1/171235-b.png"},
		Type:     entity.ListingTypeSale,
		IsActive: true,
	}
}

func TestInsertAndGetByID(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t), "")
	ctx := context.Background()

	created, err := repo.Insert(ctx, "marketplace_items", saleRecord("u1"))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)

	assert.Equal(t, "u1", got.UserID)
	require.NotNil(t, got.Price)
	assert.Equal(t, 25.0, *got.Price)
	assert.Equal(t, []string{"https://cdn.test/u1/171234-a.png", "https://cdn.test/u1/171235-b.png"}, got.Photos)
	assert.Equal(t, entity.ListingTypeSale, got.Type)
	assert.Nil(t, got.TradePreferences)
	assert.True(t, got.IsActive)
	assert.False(t, got.Boosted)
}

func TestInsert_TradeHasNullPrice(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t), "")
	ctx := context.Background()

	prefs := "Board games"
	record := saleRecord("u1")
	record.Type = entity.ListingTypeTrade
	record.Price = nil
	record.TradePreferences = &prefs

	created, err := repo.Insert(ctx, "", record)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Price)
	require.NotNil(t, got.TradePreferences)
	assert.Equal(t, "Board games", *got.TradePreferences)
}

func TestInsert_UnknownCollection(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t), "")

	_, err := repo.Insert(context.Background(), "no_such_table", saleRecord("u1"))
	assert.ErrorContains(t, err, "no_such_table")
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t), "")

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

func TestListByUser(t *testing.T) {
	repo := NewListingRepository(setupTestDB(t), "")
	ctx := context.Background()

	for _, user := range []string{"u1", "u1", "u2"} {
		_, err := repo.Insert(ctx, "marketplace_items", saleRecord(user))
		require.NoError(t, err)
	}

	mine, err := repo.ListByUser(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, l := range mine {
		assert.Equal(t, "u1", l.UserID)
	}

	page, err := repo.ListByUser(ctx, "u1", 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
