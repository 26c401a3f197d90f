package persistent

import (
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/model"

	"github.com/lib/pq"
)

func ToListingEntity(m *model.MarketplaceItemModel) *entity.Listing {
	if m == nil {
		return nil
	}

	photos := []string(m.Photos)
	if photos == nil {
		photos = []string{}
	}

	return &entity.Listing{
		ID: m.ID,
		ListingRecord: entity.ListingRecord{
			UserID:           m.UserID,
			Title:            m.Title,
			Description:      m.Description,
			Price:            m.Price,
			Category:         m.Category,
			Location:         m.Location,
			Photos:           photos,
			Type:             entity.ListingType(m.Type),
			TradePreferences: m.TradePreferences,
			Boosted:          m.Boosted,
			IsActive:         m.IsActive,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func ToListingModel(r *entity.ListingRecord) *model.MarketplaceItemModel {
	if r == nil {
		return nil
	}

	return &model.MarketplaceItemModel{
		UserID:           r.UserID,
		Title:            r.Title,
		Description:      r.Description,
		Price:            r.Price,
		Category:         r.Category,
		Location:         r.Location,
		Photos:           pq.StringArray(append([]string(nil), r.Photos...)),
		Type:             string(r.Type),
		TradePreferences: r.TradePreferences,
		Boosted:          r.Boosted,
		IsActive:         r.IsActive,
	}
}
