package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"troc-marketplace/services/listing/internal/form"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrPreviewNotFound = errors.New("preview not found")

type Preview struct {
	Name        string
	ContentType string
	Content     []byte
}

type PreviewStore interface {
	form.PreviewStore
	Get(ctx context.Context, handle string) (*Preview, error)
}

// RedisPreviewStore keeps preview blobs in redis for a limited time. Handles
// are URL paths under prefix so clients can fetch them as they are.
type RedisPreviewStore struct {
	redisClient *redis.Client
	prefix      string
	ttl         time.Duration
}

func NewRedisPreviewStore(redisClient *redis.Client, prefix string, ttl time.Duration) *RedisPreviewStore {
	return &RedisPreviewStore{
		redisClient: redisClient,
		prefix:      strings.TrimSuffix(prefix, "/") + "/",
		ttl:         ttl,
	}
}

func (s *RedisPreviewStore) Create(ctx context.Context, file form.File) (string, error) {
	id := uuid.New().String()
	key := previewKey(id)

	pipe := s.redisClient.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"name":         file.Name,
		"content_type": file.ContentType,
		"content":      file.Content,
	})
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}
	return s.prefix + id, nil
}

func (s *RedisPreviewStore) Release(ctx context.Context, handle string) error {
	return s.redisClient.Del(ctx, previewKey(s.id(handle))).Err()
}

func (s *RedisPreviewStore) Get(ctx context.Context, handle string) (*Preview, error) {
	fields, err := s.redisClient.HGetAll(ctx, previewKey(s.id(handle))).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrPreviewNotFound
	}
	return &Preview{
		Name:        fields["name"],
		ContentType: fields["content_type"],
		Content:     []byte(fields["content"]),
	}, nil
}

func (s *RedisPreviewStore) id(handle string) string {
	return strings.TrimPrefix(handle, s.prefix)
}

func previewKey(id string) string {
	return "preview:" + id
}
