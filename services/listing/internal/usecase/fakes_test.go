package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"

	"github.com/stretchr/testify/mock"
)

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Insert(ctx context.Context, collection string, record *entity.ListingRecord) (*entity.Listing, error) {
	args := m.Called(ctx, collection, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}

func (m *MockListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}

func (m *MockListingRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Listing, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Listing), args.Error(1)
}

type fakeStorage struct {
	keys []string
}

func (f *fakeStorage) Upload(_ context.Context, bucket, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	return key, nil
}

func (f *fakeStorage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("https://cdn.test/%s/%s", bucket, path)
}

type fakePreviews struct {
	blobs map[string]*Preview
}

func newFakePreviews() *fakePreviews {
	return &fakePreviews{blobs: map[string]*Preview{}}
}

func (f *fakePreviews) Create(_ context.Context, file form.File) (string, error) {
	handle := fmt.Sprintf("/api/v1/previews/%d", len(f.blobs)+1)
	f.blobs[handle] = &Preview{Name: file.Name, ContentType: file.ContentType, Content: file.Content}
	return handle, nil
}

func (f *fakePreviews) Release(_ context.Context, handle string) error {
	delete(f.blobs, handle)
	return nil
}

func (f *fakePreviews) Get(_ context.Context, handle string) (*Preview, error) {
	p, ok := f.blobs[handle]
	if !ok {
		return nil, ErrPreviewNotFound
	}
	return p, nil
}

type fakeEvents struct {
	routingKeys []string
	tasks       []map[string]interface{}
}

func (f *fakeEvents) PublishTask(_ context.Context, routingKey string, task map[string]interface{}) error {
	f.routingKeys = append(f.routingKeys, routingKey)
	f.tasks = append(f.tasks, task)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]entity.Notification
}

func (f *fakePublisher) Publish(_ context.Context, draftID string, n entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = map[string][]entity.Notification{}
	}
	f.published[draftID] = append(f.published[draftID], n)
	return nil
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type fixture struct {
	uc        DraftUseCase
	storage   *fakeStorage
	previews  *fakePreviews
	repo      *MockListingRepository
	events    *fakeEvents
	publisher *fakePublisher
	clock     *clock
}

func newFixture() *fixture {
	log := logger.NewWithWriter(io.Discard, io.Discard)
	f := &fixture{
		storage:   &fakeStorage{},
		previews:  newFakePreviews(),
		repo:      new(MockListingRepository),
		events:    &fakeEvents{},
		publisher: &fakePublisher{},
		clock:     &clock{now: time.UnixMilli(171234)},
	}
	records := NewListingRecordStore(f.repo, nil, f.events, log)
	f.uc = NewDraftUseCase(f.storage, records, f.previews, f.publisher, f.repo, DraftConfig{
		Form:     form.Options{Now: f.clock.Now},
		DraftTTL: time.Hour,
		Now:      f.clock.Now,
	}, log)
	return f
}

func photo(name string) form.File {
	return form.File{Name: name, ContentType: "image/png", Content: []byte(name)}
}

func strPtr(s string) *string { return &s }

// blockingRecords holds every insert until release is closed.
type blockingRecords struct {
	mu      sync.Mutex
	inserts int
	entered chan struct{}
	release chan struct{}
}

func newBlockingRecords() *blockingRecords {
	return &blockingRecords{entered: make(chan struct{}, 2), release: make(chan struct{})}
}

func (b *blockingRecords) Insert(_ context.Context, _ string, _ *entity.ListingRecord) error {
	b.mu.Lock()
	b.inserts++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func (b *blockingRecords) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inserts
}
