package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/pkg/queue"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	u1 = &entity.Profile{ID: "u1"}
	u2 = &entity.Profile{ID: "u2"}
)

func TestCreateDraft_StartsEmpty(t *testing.T) {
	f := newFixture()

	out, err := f.uc.CreateDraft(context.Background(), u1)
	require.NoError(t, err)

	assert.NotEmpty(t, out.DraftID)
	assert.Equal(t, entity.ListingTypeSale, out.Draft.Type)
	assert.Empty(t, out.Draft.Photos)
	assert.Equal(t, form.MaxPhotos, out.Draft.MaxPhotos)
	assert.Empty(t, out.Notifications)
}

func TestSubmit_SaleEndToEnd(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	var inserted *entity.ListingRecord
	f.repo.On("Insert", mock.Anything, "marketplace_items", mock.AnythingOfType("*entity.ListingRecord")).
		Run(func(args mock.Arguments) { inserted = args.Get(2).(*entity.ListingRecord) }).
		Return(&entity.Listing{ID: "listing-1", ListingRecord: entity.ListingRecord{UserID: "u1", Category: "books"}}, nil)

	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	out, err := f.uc.AddPhotos(ctx, draft.DraftID, u1, []form.File{photo("a.png")})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/171234-a.png"}, f.storage.keys)
	assert.Equal(t, []string{"https://cdn.test/marketplace-photos/u1/171234-a.png"}, out.Draft.Photos)
	assert.Equal(t, 1, out.Batch.Accepted)

	_, err = f.uc.UpdateFields(ctx, draft.DraftID, u1, FieldUpdate{
		Title:    strPtr("Bike"),
		Price:    strPtr("25"),
		Category: strPtr("books"),
	})
	require.NoError(t, err)

	out, err = f.uc.Submit(ctx, draft.DraftID, u1)
	require.NoError(t, err)

	require.NotNil(t, inserted)
	require.NotNil(t, inserted.Price)
	assert.Equal(t, 25.0, *inserted.Price)
	assert.Nil(t, inserted.TradePreferences)
	assert.Equal(t, "u1", inserted.UserID)
	assert.True(t, inserted.IsActive)
	assert.False(t, inserted.Boosted)

	assert.Equal(t, form.DefaultRoute, out.Redirect)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, entity.VariantSuccess, out.Notifications[0].Variant)
	assert.Equal(t, []string{queue.ListingCreatedKey}, f.events.routingKeys)
	assert.Equal(t, "listing-1", f.events.tasks[0]["listing_id"])

	_, err = f.uc.GetDraft(ctx, draft.DraftID, u1)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	f.repo.AssertExpectations(t)
}

func TestSubmit_InsertFailureKeepsDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.On("Insert", mock.Anything, "marketplace_items", mock.Anything).Return(nil, errors.New("network error"))

	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)
	_, err = f.uc.AddPhotos(ctx, draft.DraftID, u1, []form.File{photo("a.png")})
	require.NoError(t, err)
	_, err = f.uc.UpdateFields(ctx, draft.DraftID, u1, FieldUpdate{Price: strPtr("25"), Category: strPtr("books")})
	require.NoError(t, err)

	out, err := f.uc.Submit(ctx, draft.DraftID, u1)

	var insertErr *form.InsertError
	require.ErrorAs(t, err, &insertErr)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, entity.VariantDestructive, out.Notifications[0].Variant)
	assert.Equal(t, "network error", out.Notifications[0].Description)
	assert.Empty(t, out.Redirect)
	assert.False(t, out.Draft.Submitting)
	assert.Empty(t, f.events.routingKeys)

	again, err := f.uc.GetDraft(ctx, draft.DraftID, u1)
	require.NoError(t, err)
	assert.Equal(t, "25", again.Draft.Price)
	assert.Len(t, again.Draft.Photos, 1)
}

func TestSubmit_ValidationDoesNotInsert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	out, err := f.uc.Submit(ctx, draft.DraftID, u1)
	assert.ErrorIs(t, err, form.ErrMissingPhotos)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, entity.VariantWarning, out.Notifications[0].Variant)
	f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateFields_RejectsUnknownType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	_, err = f.uc.UpdateFields(ctx, draft.DraftID, u1, FieldUpdate{Type: strPtr("auction"), Title: strPtr("x")})
	assert.ErrorIs(t, err, form.ErrInvalidType)

	out, err := f.uc.GetDraft(ctx, draft.DraftID, u1)
	require.NoError(t, err)
	assert.Equal(t, entity.ListingTypeSale, out.Draft.Type)
	assert.Empty(t, out.Draft.Title)
}

func TestRemovePhoto(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)
	_, err = f.uc.AddPhotos(ctx, draft.DraftID, u1, []form.File{photo("a.png"), photo("b.png")})
	require.NoError(t, err)

	out, err := f.uc.RemovePhoto(ctx, draft.DraftID, u1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.test/marketplace-photos/u1/171234-b.png"}, out.Draft.Photos)
	assert.Len(t, out.Draft.PhotoPreviews, 1)

	_, err = f.uc.RemovePhoto(ctx, draft.DraftID, u1, 5)
	assert.ErrorIs(t, err, form.ErrPhotoIndex)
}

func TestAddPhotos_AnonymousCallerOnOwnedDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	out, err := f.uc.AddPhotos(ctx, draft.DraftID, nil, []form.File{photo("a.png")})

	assert.ErrorIs(t, err, form.ErrMissingIdentity)
	assert.Empty(t, f.storage.keys)
	assert.Empty(t, out.Draft.PhotoPreviews)
	assert.False(t, out.Draft.UploadingPhotos)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, entity.VariantDestructive, out.Notifications[0].Variant)
}

func TestOwnership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	owned, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)
	_, err = f.uc.GetDraft(ctx, owned.DraftID, u2)
	assert.ErrorIs(t, err, ErrDraftForbidden)
	assert.ErrorIs(t, f.uc.DiscardDraft(ctx, owned.DraftID, u2), ErrDraftForbidden)

	anonymous, err := f.uc.CreateDraft(ctx, nil)
	require.NoError(t, err)
	_, err = f.uc.GetDraft(ctx, anonymous.DraftID, u2)
	require.NoError(t, err)
	_, err = f.uc.GetDraft(ctx, anonymous.DraftID, u1)
	assert.ErrorIs(t, err, ErrDraftForbidden)
}

func TestDiscardDraft(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	require.NoError(t, f.uc.DiscardDraft(ctx, draft.DraftID, u1))
	_, err = f.uc.GetDraft(ctx, draft.DraftID, u1)
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.ErrorIs(t, f.uc.DiscardDraft(ctx, draft.DraftID, u1), ErrDraftNotFound)
}

func TestDraftExpiresWhenIdle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(30 * time.Minute)
	_, err = f.uc.GetDraft(ctx, draft.DraftID, u1)
	require.NoError(t, err)

	f.clock.now = f.clock.now.Add(61 * time.Minute)
	_, err = f.uc.GetDraft(ctx, draft.DraftID, u1)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestNotificationsArePublished(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	_, err = f.uc.Submit(ctx, draft.DraftID, u1)
	require.Error(t, err)

	published := f.publisher.published[draft.DraftID]
	require.Len(t, published, 1)
	assert.Equal(t, "Missing photos", published[0].Title)
}

func TestGetPreview(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)
	out, err := f.uc.AddPhotos(ctx, draft.DraftID, u1, []form.File{photo("a.png")})
	require.NoError(t, err)
	require.Len(t, out.Draft.PhotoPreviews, 1)

	preview, err := f.uc.GetPreview(ctx, out.Draft.PhotoPreviews[0])
	require.NoError(t, err)
	assert.Equal(t, "a.png", preview.Name)
	assert.Equal(t, []byte("a.png"), preview.Content)

	_, err = f.uc.GetPreview(ctx, "/api/v1/previews/missing")
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestListMyListings(t *testing.T) {
	f := newFixture()
	listings := []*entity.Listing{{ID: "l1"}}
	f.repo.On("ListByUser", mock.Anything, "u1", 20, 0).Return(listings, nil)

	got, err := f.uc.ListMyListings(context.Background(), "u1", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, listings, got)
	f.repo.AssertExpectations(t)
}

func TestSubmit_ConcurrentSubmitsInsertOnce(t *testing.T) {
	ctx := context.Background()
	log := logger.NewWithWriter(io.Discard, io.Discard)
	records := newBlockingRecords()
	clk := &clock{now: time.UnixMilli(171234)}
	uc := NewDraftUseCase(&fakeStorage{}, records, newFakePreviews(), nil, new(MockListingRepository), DraftConfig{
		Form:     form.Options{Now: clk.Now},
		DraftTTL: time.Hour,
		Now:      clk.Now,
	}, log)

	draft, err := uc.CreateDraft(ctx, u1)
	require.NoError(t, err)
	_, err = uc.AddPhotos(ctx, draft.DraftID, u1, []form.File{photo("a.png")})
	require.NoError(t, err)
	_, err = uc.UpdateFields(ctx, draft.DraftID, u1, FieldUpdate{Price: strPtr("25"), Category: strPtr("books")})
	require.NoError(t, err)

	errs := make(chan error, 2)
	submit := func() {
		_, err := uc.Submit(ctx, draft.DraftID, u1)
		errs <- err
	}

	go submit()
	<-records.entered
	go submit()
	time.Sleep(20 * time.Millisecond)
	close(records.release)

	first, second := <-errs, <-errs
	assert.Equal(t, 1, records.count())
	if first == nil {
		assert.ErrorIs(t, second, ErrDraftNotFound)
	} else {
		assert.ErrorIs(t, first, ErrDraftNotFound)
		assert.NoError(t, second)
	}
}

func TestDiscardDraft_LaterSubmitSeesNotFound(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft, err := f.uc.CreateDraft(ctx, u1)
	require.NoError(t, err)

	require.NoError(t, f.uc.DiscardDraft(ctx, draft.DraftID, u1))
	_, err = f.uc.Submit(ctx, draft.DraftID, u1)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}
