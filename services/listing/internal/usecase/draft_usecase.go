package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"
	"troc-marketplace/services/listing/internal/repo/persistent"

	"github.com/google/uuid"
)

var (
	ErrDraftNotFound  = errors.New("draft not found")
	ErrDraftForbidden = errors.New("draft belongs to another user")
)

// Outcome is the draft state after an operation together with everything the
// controller asked to show the user while performing it.
type Outcome struct {
	DraftID       string                `json:"draft_id"`
	Draft         form.Draft            `json:"draft"`
	Notifications []entity.Notification `json:"notifications"`
	Redirect      string                `json:"redirect,omitempty"`
	Batch         *form.BatchResult     `json:"batch,omitempty"`
}

// FieldUpdate carries the fields to change; nil fields are left alone.
type FieldUpdate struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	Price            *string `json:"price"`
	Category         *string `json:"category"`
	Location         *string `json:"location"`
	Type             *string `json:"type"`
	TradePreferences *string `json:"trade_preferences"`
}

type DraftUseCase interface {
	CreateDraft(ctx context.Context, profile *entity.Profile) (*Outcome, error)
	GetDraft(ctx context.Context, draftID string, profile *entity.Profile) (*Outcome, error)
	UpdateFields(ctx context.Context, draftID string, profile *entity.Profile, update FieldUpdate) (*Outcome, error)
	AddPhotos(ctx context.Context, draftID string, profile *entity.Profile, files []form.File) (*Outcome, error)
	RemovePhoto(ctx context.Context, draftID string, profile *entity.Profile, index int) (*Outcome, error)
	Submit(ctx context.Context, draftID string, profile *entity.Profile) (*Outcome, error)
	DiscardDraft(ctx context.Context, draftID string, profile *entity.Profile) error
	GetPreview(ctx context.Context, handle string) (*Preview, error)
	GetListing(ctx context.Context, listingID string) (*entity.Listing, error)
	ListMyListings(ctx context.Context, userID string, limit, offset int) ([]*entity.Listing, error)
}

type DraftConfig struct {
	Form     form.Options
	DraftTTL time.Duration
	Now      func() time.Time
}

type draftUseCase struct {
	storage     form.PhotoStorage
	records     form.RecordStore
	previews    PreviewStore
	publisher   NotificationPublisher
	listingRepo persistent.ListingRepository
	cfg         DraftConfig
	logger      *logger.Logger

	mu       sync.Mutex
	sessions map[string]*draftSession
}

func NewDraftUseCase(
	storage form.PhotoStorage,
	records form.RecordStore,
	previews PreviewStore,
	publisher NotificationPublisher,
	listingRepo persistent.ListingRepository,
	cfg DraftConfig,
	logger *logger.Logger,
) DraftUseCase {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Form.Logger == nil {
		cfg.Form.Logger = logger
	}
	return &draftUseCase{
		storage:     storage,
		records:     records,
		previews:    previews,
		publisher:   publisher,
		listingRepo: listingRepo,
		cfg:         cfg,
		logger:      logger,
		sessions:    make(map[string]*draftSession),
	}
}

func (uc *draftUseCase) CreateDraft(ctx context.Context, profile *entity.Profile) (*Outcome, error) {
	id := uuid.New().String()
	ui := &sessionUI{draftID: id, publisher: uc.publisher, logger: uc.logger}
	session := &draftSession{
		id: id,
		ctrl: form.New(profile, form.Deps{
			Storage:   uc.storage,
			Records:   uc.records,
			Previews:  uc.previews,
			Notifier:  ui,
			Navigator: ui,
		}, uc.cfg.Form),
		ui:       ui,
		lastUsed: uc.cfg.Now(),
	}
	if profile.Identified() {
		session.ownerID = profile.ID
	}

	uc.mu.Lock()
	uc.pruneLocked()
	uc.sessions[id] = session
	uc.mu.Unlock()

	uc.logger.Info("Draft %s created (owner=%q)", id, session.ownerID)

	session.mu.Lock()
	defer session.mu.Unlock()
	return uc.outcome(session, nil), nil
}

func (uc *draftUseCase) GetDraft(ctx context.Context, draftID string, profile *entity.Profile) (*Outcome, error) {
	var out *Outcome
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		out = uc.outcome(s, nil)
		return nil
	})
	return out, err
}

func (uc *draftUseCase) UpdateFields(ctx context.Context, draftID string, profile *entity.Profile, update FieldUpdate) (*Outcome, error) {
	var out *Outcome
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		if update.Type != nil {
			if err := s.ctrl.SetType(entity.ListingType(*update.Type)); err != nil {
				return err
			}
		}
		if update.Title != nil {
			s.ctrl.SetTitle(*update.Title)
		}
		if update.Description != nil {
			s.ctrl.SetDescription(*update.Description)
		}
		if update.Price != nil {
			s.ctrl.SetPrice(*update.Price)
		}
		if update.Category != nil {
			s.ctrl.SetCategory(*update.Category)
		}
		if update.Location != nil {
			s.ctrl.SetLocation(*update.Location)
		}
		if update.TradePreferences != nil {
			s.ctrl.SetTradePreferences(*update.TradePreferences)
		}
		out = uc.outcome(s, nil)
		return nil
	})
	return out, err
}

func (uc *draftUseCase) AddPhotos(ctx context.Context, draftID string, profile *entity.Profile, files []form.File) (*Outcome, error) {
	var out *Outcome
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		batch, err := s.ctrl.HandlePhotoChange(ctx, files)
		out = uc.outcome(s, batch)
		return err
	})
	return out, err
}

func (uc *draftUseCase) RemovePhoto(ctx context.Context, draftID string, profile *entity.Profile, index int) (*Outcome, error) {
	var out *Outcome
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		err := s.ctrl.RemovePhoto(ctx, index)
		out = uc.outcome(s, nil)
		return err
	})
	return out, err
}

// Submit inserts the draft as a listing. A successful submission discards the
// draft; any failure keeps it so the user can fix it and retry.
func (uc *draftUseCase) Submit(ctx context.Context, draftID string, profile *entity.Profile) (*Outcome, error) {
	var out *Outcome
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		err := s.ctrl.Submit(ctx)
		out = uc.outcome(s, nil)
		if err == nil {
			uc.close(s)
			uc.logger.Info("Draft %s submitted and discarded", draftID)
		}
		return err
	})
	return out, err
}

func (uc *draftUseCase) DiscardDraft(ctx context.Context, draftID string, profile *entity.Profile) error {
	err := uc.withSession(draftID, profile, func(s *draftSession) error {
		uc.close(s)
		return nil
	})
	if err != nil {
		return err
	}
	uc.logger.Info("Draft %s discarded", draftID)
	return nil
}

func (uc *draftUseCase) GetPreview(ctx context.Context, handle string) (*Preview, error) {
	return uc.previews.Get(ctx, handle)
}

func (uc *draftUseCase) GetListing(ctx context.Context, listingID string) (*entity.Listing, error) {
	return uc.listingRepo.GetByID(ctx, listingID)
}

func (uc *draftUseCase) ListMyListings(ctx context.Context, userID string, limit, offset int) ([]*entity.Listing, error) {
	return uc.listingRepo.ListByUser(ctx, userID, limit, offset)
}

// withSession runs fn with the draft's session locked and the caller's
// profile bound to its controller.
//
// The draft id is an unguessable capability: an anonymous caller may still
// reach an owned draft, but then uploads and submission fail for lack of
// identity. A signed-in caller who is not the owner is refused.
func (uc *draftUseCase) withSession(draftID string, profile *entity.Profile, fn func(s *draftSession) error) error {
	uc.mu.Lock()
	session, ok := uc.sessions[draftID]
	if ok && uc.expired(session) {
		delete(uc.sessions, draftID)
		ok = false
	}
	if ok {
		session.lastUsed = uc.cfg.Now()
	}
	uc.mu.Unlock()
	if !ok {
		return ErrDraftNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.closed {
		return ErrDraftNotFound
	}
	if profile.Identified() {
		if session.ownerID == "" {
			session.ownerID = profile.ID
		} else if session.ownerID != profile.ID {
			return ErrDraftForbidden
		}
	}
	session.ctrl.SetProfile(profile)

	return fn(session)
}

func (uc *draftUseCase) outcome(s *draftSession, batch *form.BatchResult) *Outcome {
	notifications, redirect := s.ui.drain()
	return &Outcome{
		DraftID:       s.id,
		Draft:         s.ctrl.Snapshot(),
		Notifications: notifications,
		Redirect:      redirect,
		Batch:         batch,
	}
}

// close must be called with s.mu held.
func (uc *draftUseCase) close(s *draftSession) {
	s.closed = true
	uc.mu.Lock()
	delete(uc.sessions, s.id)
	uc.mu.Unlock()
}

func (uc *draftUseCase) expired(s *draftSession) bool {
	return uc.cfg.DraftTTL > 0 && uc.cfg.Now().Sub(s.lastUsed) > uc.cfg.DraftTTL
}

func (uc *draftUseCase) pruneLocked() {
	for id, s := range uc.sessions {
		if uc.expired(s) {
			delete(uc.sessions, id)
			uc.logger.Info("Draft %s expired", id)
		}
	}
}
