package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"troc-marketplace/pkg/cache"
	"troc-marketplace/pkg/config"
	"troc-marketplace/pkg/database"
	"troc-marketplace/pkg/logger"
	"troc-marketplace/pkg/s3"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"
	"troc-marketplace/services/listing/internal/repo/persistent"
	"troc-marketplace/services/listing/internal/usecase"
)

type seedListing struct {
	title            string
	description      string
	price            string
	category         string
	location         string
	listingType      entity.ListingType
	tradePreferences string
}

var seedUsers = map[string][]seedListing{
	"seed-alice": {
		{"Road bike", "Aluminium frame, 54 cm, recently serviced.", "180", "sports", "Lyon", entity.ListingTypeSale, ""},
		{"Board games bundle", "Five games, complete.", "", "games", "Lyon", entity.ListingTypeTrade, "Camping gear"},
	},
	"seed-bob": {
		{"Calculus textbook", "Second edition, a few notes in pencil.", "25", "books", "Grenoble", entity.ListingTypeSale, ""},
	},
	"seed-charlie": {
		{"Desk lamp", "LED, adjustable arm.", "15.50", "home", "Paris", entity.ListingTypeSale, ""},
		{"Vinyl records", "Jazz, around thirty records.", "", "music", "Paris", entity.ListingTypeTrade, "Turntable or speakers"},
	},
}

// logUI prints what the form would show its user.
type logUI struct {
	log *logger.Logger
}

func (u logUI) Notify(n entity.Notification) {
	u.log.Info("[%s] %s: %s", n.Variant, n.Title, n.Description)
}

func (u logUI) Navigate(route string) {
	u.log.Info("Navigate to %s", route)
}

func main() {
	imageURL := flag.String("image-url", "https://cataas.com/cat", "where to fetch placeholder photos from")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		panic(err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}

	ctx := context.Background()
	if err := s3Client.EnsureBucket(ctx, cfg.S3BucketName); err != nil {
		log.Error("Failed to ensure bucket %s: %v", cfg.S3BucketName, err)
		panic(err)
	}

	repo := persistent.NewListingRepository(db, cfg.ListingCollection)
	deps := form.Deps{
		Storage:   s3Client,
		Records:   usecase.NewListingRecordStore(repo, redisClient, nil, log),
		Previews:  usecase.NewRedisPreviewStore(redisClient, "/api/v1/previews", cfg.PreviewTTL),
		Notifier:  logUI{log: log},
		Navigator: logUI{log: log},
	}
	opts := form.Options{
		MaxPhotos:     cfg.MaxPhotos,
		Bucket:        cfg.S3BucketName,
		Collection:    cfg.ListingCollection,
		ListingsRoute: cfg.ListingsRoute,
		Logger:        log,
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	created := 0
	for userID, listings := range seedUsers {
		for i, listing := range listings {
			if err := seedOne(ctx, httpClient, *imageURL, &entity.Profile{ID: userID}, deps, opts, listing, i); err != nil {
				log.Error("Failed to seed %q for %s: %v", listing.title, userID, err)
				continue
			}
			created++
		}
	}

	log.Info("Seeded %d listings", created)
}

// seedOne fills a form the way a user would and submits it.
func seedOne(ctx context.Context, httpClient *http.Client, imageURL string, profile *entity.Profile, deps form.Deps, opts form.Options, listing seedListing, index int) error {
	photo, err := fetchPhoto(httpClient, imageURL, fmt.Sprintf("seed_%d.jpg", index))
	if err != nil {
		return err
	}

	ctrl := form.New(profile, deps, opts)
	if err := ctrl.SetType(listing.listingType); err != nil {
		return err
	}
	ctrl.SetTitle(listing.title)
	ctrl.SetDescription(listing.description)
	ctrl.SetPrice(listing.price)
	ctrl.SetCategory(listing.category)
	ctrl.SetLocation(listing.location)
	ctrl.SetTradePreferences(listing.tradePreferences)

	if _, err := ctrl.HandlePhotoChange(ctx, []form.File{photo}); err != nil {
		return err
	}
	return ctrl.Submit(ctx)
}

func fetchPhoto(httpClient *http.Client, url, name string) (form.File, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return form.File{}, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return form.File{}, fmt.Errorf("image source returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return form.File{}, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(content) == 0 {
		return form.File{}, fmt.Errorf("received empty image data")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return form.File{Name: name, ContentType: contentType, Content: content}, nil
}
