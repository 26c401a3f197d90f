package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/pkg/queue"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/repo/persistent"

	"github.com/redis/go-redis/v9"
)

const (
	listingCacheTTL = 24 * time.Hour
	feedTTL         = 7 * 24 * time.Hour
	feedMaxLen      = 10000
	globalFeedKey   = "feed:marketplace"
)

type EventPublisher interface {
	PublishTask(ctx context.Context, routingKey string, task map[string]interface{}) error
}

// ListingRecordStore inserts submitted listings and fans the new listing out
// to the redis feeds and the listing event queue. Only the insert can fail
// the submission.
type ListingRecordStore struct {
	repo        persistent.ListingRepository
	redisClient *redis.Client
	events      EventPublisher
	logger      *logger.Logger
}

func NewListingRecordStore(repo persistent.ListingRepository, redisClient *redis.Client, events EventPublisher, logger *logger.Logger) *ListingRecordStore {
	return &ListingRecordStore{
		repo:        repo,
		redisClient: redisClient,
		events:      events,
		logger:      logger,
	}
}

func (s *ListingRecordStore) Insert(ctx context.Context, collection string, record *entity.ListingRecord) error {
	listing, err := s.repo.Insert(ctx, collection, record)
	if err != nil {
		return err
	}

	s.logger.Info("Listing %s created by user %s in %s", listing.ID, listing.UserID, collection)

	if s.redisClient != nil {
		s.cacheListing(ctx, listing)
		s.addToFeeds(ctx, listing)
	}
	if s.events != nil {
		s.publishCreated(ctx, listing)
	}
	return nil
}

func (s *ListingRecordStore) cacheListing(ctx context.Context, listing *entity.Listing) {
	listingKey := fmt.Sprintf("listing:%s", listing.ID)
	photosJSON, _ := json.Marshal(listing.Photos)

	listingData := map[string]interface{}{
		"id":         listing.ID,
		"user_id":    listing.UserID,
		"title":      listing.Title,
		"category":   listing.Category,
		"location":   listing.Location,
		"type":       string(listing.Type),
		"photos":     string(photosJSON),
		"is_active":  listing.IsActive,
		"created_at": listing.CreatedAt.Format(time.RFC3339),
	}
	if listing.Price != nil {
		listingData["price"] = *listing.Price
	}

	pipe := s.redisClient.TxPipeline()
	pipe.HSet(ctx, listingKey, listingData)
	pipe.Expire(ctx, listingKey, listingCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to cache listing %s: %v", listing.ID, err)
	}
}

func (s *ListingRecordStore) addToFeeds(ctx context.Context, listing *entity.Listing) {
	keys := []string{
		globalFeedKey,
		fmt.Sprintf("listings:user:%s", listing.UserID),
	}
	if listing.Category != "" {
		keys = append(keys, fmt.Sprintf("%s:%s", globalFeedKey, listing.Category))
	}

	pipe := s.redisClient.Pipeline()
	for _, key := range keys {
		pipe.LPush(ctx, key, listing.ID)
		pipe.LTrim(ctx, key, 0, feedMaxLen-1)
		pipe.Expire(ctx, key, feedTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to add listing %s to feeds: %v", listing.ID, err)
	}
}

func (s *ListingRecordStore) publishCreated(ctx context.Context, listing *entity.Listing) {
	task := map[string]interface{}{
		"type":       queue.ListingCreatedKey,
		"listing_id": listing.ID,
		"user_id":    listing.UserID,
		"category":   listing.Category,
		"priority":   5,
	}
	if err := s.events.PublishTask(ctx, queue.ListingCreatedKey, task); err != nil {
		s.logger.Error("Failed to publish listing_created for %s: %v", listing.ID, err)
	}
}
