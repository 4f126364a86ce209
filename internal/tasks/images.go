package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/Davzs/adezz/internal/logger"
	"github.com/Davzs/adezz/internal/services"
	"github.com/Davzs/adezz/internal/storage"
)

// UploadPrefix is the key prefix presigned uploads are written under.
const UploadPrefix = "uploads"

const jpegQuality = 85

// ImageTaskPayload points at an uploaded image to attach to a listing.
type ImageTaskPayload struct {
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
	ObjectKey string `json:"object_key"`
}

// AvatarTaskPayload points at an uploaded image to use as a profile picture.
type AvatarTaskPayload struct {
	UserID    string `json:"user_id"`
	ObjectKey string `json:"object_key"`
}

// UploadBelongsTo reports whether key lies under the upload prefix of userID.
func UploadBelongsTo(key, userID string) bool {
	prefix := UploadPrefix + "/" + userID + "/"
	return strings.HasPrefix(key, prefix) && len(key) > len(prefix) && !strings.Contains(key, "..")
}

// HandleImageProcessTask downsizes an uploaded image, stores it under the
// listing and appends its URL to the listing's images.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := parseID("listing_id", payload.ListingID)
	if err != nil {
		return err
	}
	if _, err := parseID("user_id", payload.UserID); err != nil {
		return err
	}
	if !UploadBelongsTo(payload.ObjectKey, payload.UserID) {
		return fmt.Errorf("object key %q not owned by %s: %w", payload.ObjectKey, payload.UserID, asynq.SkipRetry)
	}
	log := logger.For(ctx, p.log).With(zap.String("listing_id", payload.ListingID), zap.String("key", payload.ObjectKey))

	img, err := p.loadUpload(ctx, payload.ObjectKey)
	if err != nil {
		return err
	}

	bound := uint(p.cfg.ImageMaxDimension)
	data, err := encodeJPEG(resize.Thumbnail(bound, bound, img, resize.Lanczos3))
	if err != nil {
		return err
	}

	key := fmt.Sprintf("listings/%s/%s.jpg", payload.ListingID, uuid.NewString())
	if err := p.storageService.PutObject(ctx, key, data, "image/jpeg"); err != nil {
		return err
	}

	if err := p.listingService.AddImageToListing(ctx, listingID, p.storageService.PublicURL(key)); err != nil {
		if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidState) {
			p.discard(ctx, log, key)
			return fmt.Errorf("attach image to listing %s: %v: %w", payload.ListingID, err, asynq.SkipRetry)
		}
		return err
	}

	p.discard(ctx, log, payload.ObjectKey)
	log.Info("listing image processed", zap.String("stored_key", key))
	return nil
}

// HandleAvatarProcessTask produces a full-size avatar and a square thumbnail
// from an uploaded image and sets both on the user.
func (p *TaskProcessor) HandleAvatarProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload AvatarTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal avatar task payload: %v: %w", err, asynq.SkipRetry)
	}
	userID, err := parseID("user_id", payload.UserID)
	if err != nil {
		return err
	}
	if !UploadBelongsTo(payload.ObjectKey, payload.UserID) {
		return fmt.Errorf("object key %q not owned by %s: %w", payload.ObjectKey, payload.UserID, asynq.SkipRetry)
	}
	log := logger.For(ctx, p.log).With(zap.String("user_id", payload.UserID), zap.String("key", payload.ObjectKey))

	img, err := p.loadUpload(ctx, payload.ObjectKey)
	if err != nil {
		return err
	}

	bound := uint(p.cfg.ImageMaxDimension)
	full, err := encodeJPEG(resize.Thumbnail(bound, bound, img, resize.Lanczos3))
	if err != nil {
		return err
	}
	thumb, err := encodeJPEG(SquareThumbnail(img, uint(p.cfg.ImageThumbSize)))
	if err != nil {
		return err
	}

	base := fmt.Sprintf("avatars/%s/%s", payload.UserID, uuid.NewString())
	fullKey, thumbKey := base+".jpg", base+"_thumb.jpg"
	if err := p.storageService.PutObject(ctx, fullKey, full, "image/jpeg"); err != nil {
		return err
	}
	if err := p.storageService.PutObject(ctx, thumbKey, thumb, "image/jpeg"); err != nil {
		return err
	}

	err = p.userService.SetAvatar(ctx, userID, p.storageService.PublicURL(fullKey), p.storageService.PublicURL(thumbKey))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			p.discard(ctx, log, fullKey)
			p.discard(ctx, log, thumbKey)
			return fmt.Errorf("set avatar for %s: %v: %w", payload.UserID, err, asynq.SkipRetry)
		}
		return err
	}

	p.discard(ctx, log, payload.ObjectKey)
	log.Info("avatar processed")
	return nil
}

func (p *TaskProcessor) loadUpload(ctx context.Context, key string) (image.Image, error) {
	obj, err := p.storageService.GetObject(ctx, key, p.cfg.UploadMaxBytes())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrObjectTooLarge) {
			return nil, fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(obj.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %v: %w", key, err, asynq.SkipRetry)
	}
	p.log.Debug("decoded upload", zap.String("key", key), zap.String("format", format))
	return img, nil
}

func (p *TaskProcessor) discard(ctx context.Context, log *zap.Logger, key string) {
	if err := p.storageService.DeleteObject(ctx, key); err != nil {
		log.Warn("failed to delete object", zap.String("object", key), zap.Error(err))
	}
}

// SquareThumbnail scales img so its shorter side is size and crops the
// center to a size x size square.
func SquareThumbnail(img image.Image, size uint) image.Image {
	b := img.Bounds()
	var scaled image.Image
	if b.Dx() < b.Dy() {
		scaled = resize.Resize(size, 0, img, resize.Lanczos3)
	} else {
		scaled = resize.Resize(0, size, img, resize.Lanczos3)
	}

	sb := scaled.Bounds()
	s := int(size)
	x0 := sb.Min.X + (sb.Dx()-s)/2
	y0 := sb.Min.Y + (sb.Dy()-s)/2
	crop := image.Rect(x0, y0, x0+s, y0+s).Intersect(sb)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := scaled.(subImager); ok {
		return si.SubImage(crop)
	}
	return scaled
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
