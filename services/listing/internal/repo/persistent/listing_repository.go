package persistent

import (
	"context"
	"errors"
	"fmt"

	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/model"

	"gorm.io/gorm"
)

var ErrListingNotFound = errors.New("listing not found")

type ListingRepository interface {
	Insert(ctx context.Context, collection string, record *entity.ListingRecord) (*entity.Listing, error)
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Listing, error)
}

type listingRepository struct {
	db    *gorm.DB
	table string
}

// NewListingRepository reads listings from table; an empty table means the
// model's default "marketplace_items".
func NewListingRepository(db *gorm.DB, table string) ListingRepository {
	if table == "" {
		table = model.MarketplaceItemModel{}.TableName()
	}
	return &listingRepository{db: db, table: table}
}

// Insert writes record into the named collection (table).
func (r *listingRepository) Insert(ctx context.Context, collection string, record *entity.ListingRecord) (*entity.Listing, error) {
	listingModel := ToListingModel(record)
	if listingModel == nil {
		return nil, errors.New("listing record is nil")
	}

	if collection == "" {
		collection = r.table
	}
	if err := r.db.WithContext(ctx).Table(collection).Create(listingModel).Error; err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	return ToListingEntity(listingModel), nil
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	var listingModel model.MarketplaceItemModel
	err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&listingModel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, err
	}
	return ToListingEntity(&listingModel), nil
}

func (r *listingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Listing, error) {
	var listingModels []model.MarketplaceItemModel
	query := r.db.WithContext(ctx).Table(r.table).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	if err := query.Find(&listingModels).Error; err != nil {
		return nil, err
	}

	listings := make([]*entity.Listing, len(listingModels))
	for i := range listingModels {
		listings[i] = ToListingEntity(&listingModels[i])
	}
	return listings, nil
}
