// Package image stores event cover images in S3 and their metadata in
// DynamoDB.
package image

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/buxmate/buxmate/internal/domain"
	s3infra "github.com/buxmate/buxmate/internal/infrastructure/s3"
	"github.com/buxmate/buxmate/internal/pkg/id"
)

const presignTTL = 15 * time.Minute

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
	EventID     string
	UploaderID  string
}

type Service interface {
	UploadCover(ctx context.Context, input UploadInput) (*domain.Image, error)
	CoverURL(ctx context.Context, imageID string) (string, error)
	Delete(ctx context.Context, requesterID, imageID string) error
}

type imageStore interface {
	Put(ctx context.Context, img *domain.Image) error
	Get(ctx context.Context, imageID string) (*domain.Image, error)
	SoftDelete(ctx context.Context, imageID string) error
}

type eventStore interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	Update(ctx context.Context, eventID string, updates map[string]interface{}) error
}

type service struct {
	s3     *s3infra.Store
	images imageStore
	events eventStore
}

func NewService(s3 *s3infra.Store, images imageStore, events eventStore) Service {
	return &service{s3: s3, images: images, events: events}
}

// UploadCover stores the image and links it to the event as its cover.
// Only the host may set a cover image.
func (s *service) UploadCover(ctx context.Context, input UploadInput) (*domain.Image, error) {
	event, err := s.events.Get(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != input.UploaderID {
		return nil, fmt.Errorf("only the host can set a cover image: %w", domain.ErrForbidden)
	}

	safeName := sanitizeFilename(input.Filename)
	key := fmt.Sprintf("events/%s/cover/%s", input.EventID, safeName)
	contentType := input.ContentType
	if contentType == "" {
		contentType = s3infra.ContentTypeFromName(safeName)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("cover must be an image: %w", domain.ErrBadRequest)
	}

	hasher := sha256.New()
	tee := io.TeeReader(input.Reader, hasher)
	if _, err := s.s3.Upload(ctx, key, tee, contentType); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	img := &domain.Image{
		ImageID:    id.New(),
		EventID:    input.EventID,
		Object:     key,
		Size:       input.Size,
		Type:       contentType,
		Name:       safeName,
		Hash:       hex.EncodeToString(hasher.Sum(nil)),
		UploadedBy: input.UploaderID,
		Enable:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.images.Put(ctx, img); err != nil {
		return nil, err
	}
	if err := s.events.Update(ctx, input.EventID, map[string]interface{}{"cover_image_id": img.ImageID}); err != nil {
		return nil, err
	}
	return img, nil
}

// CoverURL returns a short-lived presigned URL for the stored image.
func (s *service) CoverURL(ctx context.Context, imageID string) (string, error) {
	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return "", err
	}
	if !img.Enable {
		return "", fmt.Errorf("image not found: %w", domain.ErrNotFound)
	}
	return s.s3.PresignedURL(ctx, img.Object, presignTTL)
}

func (s *service) Delete(ctx context.Context, requesterID, imageID string) error {
	img, err := s.images.Get(ctx, imageID)
	if err != nil {
		return err
	}
	event, err := s.events.Get(ctx, img.EventID)
	if err != nil {
		return err
	}
	if event.HostID != requesterID {
		return fmt.Errorf("only the host can delete the cover image: %w", domain.ErrForbidden)
	}
	if err := s.s3.Delete(ctx, img.Object); err != nil {
		return err
	}
	if err := s.images.SoftDelete(ctx, imageID); err != nil {
		return err
	}
	return s.events.Update(ctx, img.EventID, map[string]interface{}{"cover_image_id": nil})
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}
