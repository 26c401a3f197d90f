package entity

import "time"

type ListingType string

const (
	ListingTypeSale  ListingType = "sale"
	ListingTypeTrade ListingType = "trade"
)

func (t ListingType) Valid() bool {
	return t == ListingTypeSale || t == ListingTypeTrade
}

// ListingRecord is the row handed to the record store on submission.
type ListingRecord struct {
	UserID           string      `json:"user_id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Price            *float64    `json:"price"`
	Category         string      `json:"category"`
	Location         string      `json:"location"`
	Photos           []string    `json:"photos"`
	Type             ListingType `json:"type"`
	TradePreferences *string     `json:"trade_preferences"`
	Boosted          bool        `json:"boosted"`
	IsActive         bool        `json:"is_active"`
}

// Listing is a persisted listing; its identity is owned by the record store.
type Listing struct {
	ID string `json:"id"`
	ListingRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
