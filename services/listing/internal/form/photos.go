package form

import (
	"context"
	"fmt"

	"troc-marketplace/services/listing/internal/entity"
)

// BatchResult describes what HandlePhotoChange did with a batch of files.
type BatchResult struct {
	Accepted int      `json:"accepted"`
	Dropped  int      `json:"dropped"`
	Uploaded []string `json:"uploaded"`
	Failed   []string `json:"failed"`
}

// HandlePhotoChange uploads a batch of picked files in order. Files beyond the
// remaining photo slots are dropped with a warning. A file whose upload fails
// is reported and skipped while its preview stays in place, so previews can
// outnumber photos afterwards.
func (c *Controller) HandlePhotoChange(ctx context.Context, files []File) (*BatchResult, error) {
	result := &BatchResult{Uploaded: []string{}, Failed: []string{}}
	if len(files) == 0 {
		return result, nil
	}

	remaining := c.opts.MaxPhotos - len(c.photos)
	if remaining < 0 {
		remaining = 0
	}
	accepted := files
	if len(accepted) > remaining {
		accepted = files[:remaining]
	}
	result.Accepted = len(accepted)
	result.Dropped = len(files) - len(accepted)

	if result.Dropped > 0 {
		c.notify("Photo limit reached",
			fmt.Sprintf("You can upload at most %d photos.", c.opts.MaxPhotos),
			entity.VariantWarning)
	}
	if len(accepted) == 0 {
		return result, ErrPhotoLimitReached
	}

	c.uploadingPhotos = true
	defer func() { c.uploadingPhotos = false }()

	if !c.profile.Identified() {
		c.notify("User error", "Unable to identify the user for the upload.", entity.VariantDestructive)
		return result, ErrMissingIdentity
	}

	previews := clone(c.photoPreviews)
	uploaded := make([]string, 0, len(accepted))

	for _, file := range accepted {
		if c.deps.Previews != nil {
			handle, err := c.deps.Previews.Create(ctx, file)
			if err != nil {
				c.opts.Logger.Error("Failed to create preview for %s: %v", file.Name, err)
				c.reportUploadFailure(file, err)
				result.Failed = append(result.Failed, file.Name)
				continue
			}
			previews = append(previews, handle)
		}

		key := c.objectKey(file)
		path, err := c.deps.Storage.Upload(ctx, c.opts.Bucket, key, file.Content, file.ContentType)
		if err != nil {
			c.opts.Logger.Warn("Upload of %s for user %s failed: %v", key, c.profile.ID, err)
			c.reportUploadFailure(file, err)
			result.Failed = append(result.Failed, file.Name)
			continue
		}

		uploaded = append(uploaded, c.deps.Storage.PublicURL(c.opts.Bucket, path))
	}

	c.photos = append(c.photos, uploaded...)
	c.photoPreviews = previews
	result.Uploaded = uploaded

	c.opts.Logger.Info("Photo batch for user %s: %d uploaded, %d failed, %d dropped",
		c.profile.ID, len(uploaded), len(result.Failed), result.Dropped)
	return result, nil
}

// RemovePhoto drops the photo and the preview at index. The uploaded object
// is left in storage.
func (c *Controller) RemovePhoto(ctx context.Context, index int) error {
	inPhotos := index >= 0 && index < len(c.photos)
	inPreviews := index >= 0 && index < len(c.photoPreviews)
	if !inPhotos && !inPreviews {
		return ErrPhotoIndex
	}

	if inPhotos {
		c.photos = removeAt(c.photos, index)
	}
	if inPreviews {
		handle := c.photoPreviews[index]
		c.photoPreviews = removeAt(c.photoPreviews, index)

		if c.opts.PreviewRelease == ReleasePreviews && c.deps.Previews != nil {
			if err := c.deps.Previews.Release(ctx, handle); err != nil {
				c.opts.Logger.Warn("Failed to release preview %s: %v", handle, err)
			}
		}
	}
	return nil
}

func (c *Controller) objectKey(file File) string {
	return fmt.Sprintf("%s/%d-%s", c.profile.ID, c.opts.Now().UnixMilli(), file.Name)
}

func (c *Controller) reportUploadFailure(file File, err error) {
	c.notify("Upload error",
		fmt.Sprintf("Error while uploading %s: %s", file.Name, err.Error()),
		entity.VariantDestructive)
}

func removeAt(s []string, index int) []string {
	out := make([]string, 0, len(s)-1)
	out = append(out, s[:index]...)
	return append(out, s[index+1:]...)
}
