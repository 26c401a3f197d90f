package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"troc-marketplace/pkg/logger"
	"troc-marketplace/services/listing/internal/entity"
)

type fakeStorage struct {
	keys    []string
	failFor map[string]error
}

func (f *fakeStorage) Upload(_ context.Context, bucket, key string, _ []byte, _ string) (string, error) {
	f.keys = append(f.keys, key)
	for name, err := range f.failFor {
		if len(key) >= len(name) && key[len(key)-len(name):] == name {
			return "", err
		}
	}
	return key, nil
}

func (f *fakeStorage) PublicURL(bucket, path string) string {
	return fmt.Sprintf("https://cdn.test/%s/%s", bucket, path)
}

type fakePreviews struct {
	created  int
	released []string
	err      error
}

func (f *fakePreviews) Create(_ context.Context, file File) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created++
	return fmt.Sprintf("preview-%d-%s", f.created, file.Name), nil
}

func (f *fakePreviews) Release(_ context.Context, handle string) error {
	f.released = append(f.released, handle)
	return nil
}

type fakeRecords struct {
	inserted   []*entity.ListingRecord
	collection string
	err        error
}

func (f *fakeRecords) Insert(_ context.Context, collection string, record *entity.ListingRecord) error {
	f.collection = collection
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, record)
	return nil
}

type recorder struct {
	notifications []entity.Notification
	routes        []string
}

func (r *recorder) Notify(n entity.Notification) { r.notifications = append(r.notifications, n) }
func (r *recorder) Navigate(route string) { r.routes = append(r.routes, route) }

func (r *recorder) last() entity.Notification {
	if len(r.notifications) == 0 {
		return entity.Notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

type fixture struct {
	ctrl     *Controller
	storage  *fakeStorage
	previews *fakePreviews
	records  *fakeRecords
	ui       *recorder
}

func newFixture(profile *entity.Profile, opts Options) *fixture {
	f := &fixture{
		storage:  &fakeStorage{failFor: map[string]error{}},
		previews: &fakePreviews{},
		records:  &fakeRecords{},
		ui:       &recorder{},
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.UnixMilli(171234) }
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewWithWriter(io.Discard, io.Discard)
	}
	f.ctrl = New(profile, Deps{
		Storage:   f.storage,
		Records:   f.records,
		Previews:  f.previews,
		Notifier:  f.ui,
		Navigator: f.ui,
	}, opts)
	return f
}

func files(names ...string) []File {
	out := make([]File, len(names))
	for i, name := range names {
		out[i] = File{Name: name, ContentType: "image/png", Content: []byte(name)}
	}
	return out
}

var errNetwork = errors.New("network error")
