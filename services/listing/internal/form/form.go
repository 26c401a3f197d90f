// Package form holds the state of one "create listing" form: its fields, the
// photos uploaded so far and the submission of the finished listing.
//
// A Controller is owned by a single caller and is not safe for concurrent use.
package form

import (
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
)

const (
	MaxPhotos         = 5
	DefaultBucket     = "marketplace-photos"
	DefaultCollection = "marketplace_items"
	DefaultRoute      = "/marketplace/mes-annonces"
)

type ReleasePolicy int

const (
	// RetainPreviews keeps a removed photo's preview handle alive.
	RetainPreviews ReleasePolicy = iota
	// ReleasePreviews frees the handle when its photo is removed.
	ReleasePreviews
)

type Options struct {
	MaxPhotos      int
	Bucket         string
	Collection     string
	ListingsRoute  string
	PreviewRelease ReleasePolicy
	Now            func() time.Time
	Logger         *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxPhotos <= 0 {
		o.MaxPhotos = MaxPhotos
	}
	if o.Bucket == "" {
		o.Bucket = DefaultBucket
	}
	if o.Collection == "" {
		o.Collection = DefaultCollection
	}
	if o.ListingsRoute == "" {
		o.ListingsRoute = DefaultRoute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logger.New()
	}
	return o
}

// Draft is a snapshot of the form state.
type Draft struct {
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Price            string             `json:"price"`
	Category         string             `json:"category"`
	Location         string             `json:"location"`
	Type             entity.ListingType `json:"type"`
	TradePreferences string             `json:"trade_preferences"`
	Photos           []string           `json:"photos"`
	PhotoPreviews    []string           `json:"photo_previews"`
	Submitting       bool               `json:"is_submitting"`
	UploadingPhotos  bool               `json:"uploading_photos"`
	MaxPhotos        int                `json:"max_photos"`
}

type Controller struct {
	profile *entity.Profile
	deps    Deps
	opts    Options

	title            string
	description      string
	price            string
	category         string
	location         string
	listingType      entity.ListingType
	tradePreferences string
	photos           []string
	photoPreviews    []string
	submitting       bool
	uploadingPhotos  bool
}

func New(profile *entity.Profile, deps Deps, opts Options) *Controller {
	return &Controller{
		profile:       profile,
		deps:          deps,
		opts:          opts.withDefaults(),
		listingType:   entity.ListingTypeSale,
		photos:        []string{},
		photoPreviews: []string{},
	}
}

// SetProfile rebinds the identity used by later uploads and submissions.
func (c *Controller) SetProfile(profile *entity.Profile) {
	c.profile = profile
}

func (c *Controller) Profile() *entity.Profile { return c.profile }

func (c *Controller) Title() string { return c.title }
func (c *Controller) Description() string { return c.description }
func (c *Controller) Price() string { return c.price }
func (c *Controller) Category() string { return c.category }
func (c *Controller) Location() string { return c.location }
func (c *Controller) Type() entity.ListingType { return c.listingType }
func (c *Controller) TradePreferences() string { return c.tradePreferences }
func (c *Controller) IsSubmitting() bool { return c.submitting }
func (c *Controller) IsUploadingPhotos() bool { return c.uploadingPhotos }
func (c *Controller) MaxPhotos() int { return c.opts.MaxPhotos }
func (c *Controller) Photos() []string { return clone(c.photos) }
func (c *Controller) PhotoPreviews() []string { return clone(c.photoPreviews) }

func (c *Controller) SetTitle(title string) { c.title = title }
func (c *Controller) SetDescription(desc string) { c.description = desc }
func (c *Controller) SetPrice(price string) { c.price = price }
func (c *Controller) SetCategory(category string) { c.category = category }
func (c *Controller) SetLocation(location string) { c.location = location }
func (c *Controller) SetTradePreferences(prefs string) { c.tradePreferences = prefs }

func (c *Controller) SetType(t entity.ListingType) error {
	if !t.Valid() {
		return ErrInvalidType
	}
	c.listingType = t
	return nil
}

func (c *Controller) Snapshot() Draft {
	return Draft{
		Title:            c.title,
		Description:      c.description,
		Price:            c.price,
		Category:         c.category,
		Location:         c.location,
		Type:             c.listingType,
		TradePreferences: c.tradePreferences,
		Photos:           clone(c.photos),
		PhotoPreviews:    clone(c.photoPreviews),
		Submitting:       c.submitting,
		UploadingPhotos:  c.uploadingPhotos,
		MaxPhotos:        c.opts.MaxPhotos,
	}
}

func (c *Controller) notify(title, description string, variant entity.Variant) {
	if c.deps.Notifier == nil {
		return
	}
	c.deps.Notifier.Notify(entity.Notification{
		Title:       title,
		Description: description,
		Variant:     variant,
	})
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
