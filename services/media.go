package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"lotpulse/models"
	"lotpulse/storage"
)

// MediaService queues scraped photo URLs for the media worker.
type MediaService struct {
	store *storage.PostgresStore
}

func NewMediaService(store *storage.PostgresStore) *MediaService {
	return &MediaService{store: store}
}

// Enqueue creates a pending media row for the URL, or returns the existing
// row's id. Safe to call on every scrape; rows are keyed by original URL.
func (s *MediaService) Enqueue(ctx context.Context, originalURL string) (uuid.UUID, error) {
	existing, err := s.store.GetMediaByOriginalURL(ctx, originalURL)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	media := &models.Media{
		ID:          uuid.New(),
		OriginalURL: originalURL,
		Status:      models.MediaStatusPending,
		CreatedAt:   time.Now(),
	}

	if err := s.store.UpsertMedia(ctx, media); err != nil {
		return uuid.Nil, err
	}

	return media.ID, nil
}

func (s *MediaService) GetPending(ctx context.Context, limit int) ([]models.Media, error) {
	return s.store.GetPendingMedia(ctx, limit)
}

func (s *MediaService) MarkUploaded(ctx context.Context, id uuid.UUID, s3Key string, contentHash string) error {
	return s.store.UpdateMediaStatus(ctx, id, models.MediaStatusUploaded, &s3Key, contentHash, 0)
}

// MarkFailed increments attempts; after three the row stops being retried.
func (s *MediaService) MarkFailed(ctx context.Context, id uuid.UUID, attempts int) error {
	status := models.MediaStatusPending
	if attempts >= 3 {
		status = models.MediaStatusFailed
	}
	return s.store.UpdateMediaStatus(ctx, id, status, nil, "", attempts)
}
