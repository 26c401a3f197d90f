package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type MarketplaceItemModel struct {
	ID               string         `gorm:"type:uuid;primary_key" json:"id"`
	UserID           string         `gorm:"type:varchar(64);not null;index" json:"user_id"`
	Title            string         `gorm:"type:varchar(255)" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Price            *float64       `gorm:"type:numeric(12,2)" json:"price"`
	Category         string         `gorm:"type:varchar(100);not null;index" json:"category"`
	Location         string         `gorm:"type:varchar(255)" json:"location"`
	Photos           pq.StringArray `gorm:"type:text[]" json:"photos"`
	Type             string         `gorm:"type:varchar(10);not null" json:"type"`
	TradePreferences *string        `gorm:"type:text" json:"trade_preferences"`
	Boosted          bool           `json:"boosted"`
	IsActive         bool           `gorm:"index" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (MarketplaceItemModel) TableName() string {
	return "marketplace_items"
}

func (m *MarketplaceItemModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
