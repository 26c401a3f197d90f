package usecase

import (
	"context"
	"sync"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
	"troc-marketplace/services/listing/internal/form"
)

// draftSession owns one form controller. mu serializes every operation on it.
// A closed session was submitted or discarded and accepts no further calls,
// even from callers that were already waiting on mu.
type draftSession struct {
	mu       sync.Mutex
	id       string
	ownerID  string
	ctrl     *form.Controller
	ui       *sessionUI
	lastUsed time.Time
	closed   bool
}

// sessionUI collects what the controller wants shown to the user during one
// call and mirrors notifications to live subscribers.
type sessionUI struct {
	draftID       string
	publisher     NotificationPublisher
	logger        *logger.Logger
	notifications []entity.Notification
	redirect      string
}

func (u *sessionUI) Notify(n entity.Notification) {
	u.notifications = append(u.notifications, n)
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(context.Background(), u.draftID, n); err != nil {
		u.logger.Warn("Failed to publish notification for draft %s: %v", u.draftID, err)
	}
}

func (u *sessionUI) Navigate(route string) {
	u.redirect = route
}

func (u *sessionUI) drain() ([]entity.Notification, string) {
	notifications := u.notifications
	if notifications == nil {
		notifications = []entity.Notification{}
	}
	redirect := u.redirect
	u.notifications = nil
	u.redirect = ""
	return notifications, redirect
}
