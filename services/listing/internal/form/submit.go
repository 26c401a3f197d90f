package form

import (
	"context"
	"math"
	"strconv"
	"strings"

	"troc-marketplace/services/listing/internal/entity"
)

const defaultInsertFailure = "An error occurred while creating the listing."

// Submit validates the draft and inserts it as a listing. Checks run in a
// fixed order and the first failing one aborts with a notification; nothing
// reaches the record store unless all of them pass.
func (c *Controller) Submit(ctx context.Context) error {
	if !c.profile.Identified() {
		c.notify("User error", "You must be signed in to create a listing.", entity.VariantDestructive)
		return ErrMissingIdentity
	}
	if len(c.photos) == 0 {
		c.notify("Missing photos", "Please add at least one photo to your listing.", entity.VariantWarning)
		return ErrMissingPhotos
	}

	var price *float64
	if c.listingType == entity.ListingTypeSale {
		p, ok := parsePrice(c.price)
		if !ok {
			c.notify("Invalid price", "Please enter a valid price for the sale.", entity.VariantWarning)
			return ErrInvalidPrice
		}
		price = &p
	}

	if c.category == "" {
		c.notify("Missing category", "Please select a category.", entity.VariantWarning)
		return ErrMissingCategory
	}

	c.submitting = true
	defer func() { c.submitting = false }()

	record := c.buildRecord(price)
	if err := c.deps.Records.Insert(ctx, c.opts.Collection, record); err != nil {
		c.opts.Logger.Error("Error creating listing for user %s: %v", c.profile.ID, err)

		description := err.Error()
		if description == "" {
			description = defaultInsertFailure
		}
		c.notify("Creation error", description, entity.VariantDestructive)
		return &InsertError{Err: err}
	}

	c.notify("Listing created!", "Your listing has been published.", entity.VariantSuccess)
	if c.deps.Navigator != nil {
		c.deps.Navigator.Navigate(c.opts.ListingsRoute)
	}
	return nil
}

func (c *Controller) buildRecord(price *float64) *entity.ListingRecord {
	var tradePreferences *string
	if c.listingType == entity.ListingTypeTrade {
		prefs := c.tradePreferences
		tradePreferences = &prefs
	}

	return &entity.ListingRecord{
		UserID:           c.profile.ID,
		Title:            c.title,
		Description:      c.description,
		Price:            price,
		Category:         c.category,
		Location:         c.location,
		Photos:           clone(c.photos),
		Type:             c.listingType,
		TradePreferences: tradePreferences,
		Boosted:          false,
		IsActive:         true,
	}
}

// MaxPrice is the largest price the listings table can hold (NUMERIC(12,2)).
const MaxPrice = 9999999999.99

// parsePrice accepts a positive amount of at most two decimals that fits the
// price column, so what is validated here is exactly what gets stored.
func parsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, false
	}
	if p < 0.01 || p > MaxPrice {
		return 0, false
	}
	if digits := strconv.FormatFloat(p, 'f', -1, 64); strings.Contains(digits, ".") {
		if len(digits)-strings.Index(digits, ".")-1 > 2 {
			return 0, false
		}
	}
	return p, true
}
