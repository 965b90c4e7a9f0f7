package workers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"lotpulse/models"
	"lotpulse/storage"
)

// maxPhotoBytes caps a single photo download.
const maxPhotoBytes = 20 * 1024 * 1024

// MediaWorker drains the pending media queue: download, hash, upload to
// object storage, record the key.
type MediaWorker struct {
	store      *storage.PostgresStore
	httpClient *http.Client
	uploader   S3Uploader
	triggerCh  chan struct{}
	logFunc    LogFunc
}

// S3Uploader abstracts the object store so tests can run without one.
type S3Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
}

func NewMediaWorker(store *storage.PostgresStore, uploader S3Uploader, client *http.Client) *MediaWorker {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &MediaWorker{
		store:      store,
		httpClient: client,
		uploader:   uploader,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *MediaWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run a batch immediately.
func (w *MediaWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type MediaProcessResult struct {
	MediaID     uuid.UUID
	S3Key       string
	ContentHash string
	Size        int64
	Error       error
}

// Process downloads one photo, hashes it, and uploads it under a
// content-addressed key. The hash makes re-uploads of the same bytes land on
// the same object.
func (w *MediaWorker) Process(ctx context.Context, media *models.Media) MediaProcessResult {
	result := MediaProcessResult{MediaID: media.ID}

	req, err := http.NewRequestWithContext(ctx, "GET", media.OriginalURL, nil)
	if err != nil {
		result.Error = fmt.Errorf("create request: %w", err)
		return result
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "image/*,*/*")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("download: %w", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("download status: %d", resp.StatusCode)
		return result
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		result.Error = fmt.Errorf("read body: %w", err)
		return result
	}
	result.Size = int64(len(data))

	hash := sha256.Sum256(data)
	result.ContentHash = hex.EncodeToString(hash[:])

	ext := guessExtension(media.OriginalURL, resp.Header.Get("Content-Type"))
	result.S3Key = fmt.Sprintf("photos/%s/%s%s", result.ContentHash[:2], result.ContentHash, ext)

	if w.uploader != nil {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}
		if err := w.uploader.Upload(ctx, result.S3Key, bytes.NewReader(data), contentType); err != nil {
			result.Error = fmt.Errorf("upload: %w", err)
			return result
		}
	}

	return result
}

func guessExtension(url, contentType string) string {
	ext := strings.ToLower(path.Ext(url))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if isImageExt(ext) {
		return ext
	}

	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func isImageExt(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif":
		return true
	}
	return false
}

// Run starts the media worker loop.
func (w *MediaWorker) Run(ctx context.Context, batchSize int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Media worker stopping")
			return
		case <-ticker.C:
			w.processBatch(ctx, batchSize)
		case <-w.triggerCh:
			w.processBatch(ctx, batchSize)
		}
	}
}

func (w *MediaWorker) processBatch(ctx context.Context, batchSize int) {
	pending, err := w.store.GetPendingMedia(ctx, batchSize)
	if err != nil {
		log.Printf("Media worker: query error: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("Media worker: processing %d items", len(pending))

	var processed, failed int
	for i := range pending {
		m := &pending[i]

		result := w.Process(ctx, m)
		if result.Error != nil {
			log.Printf("Media worker: failed %s: %v", m.OriginalURL, result.Error)
			failed++

			newAttempts := m.Attempts + 1
			status := models.MediaStatusPending
			if newAttempts >= 3 {
				status = models.MediaStatusFailed
			}
			if err := w.store.UpdateMediaStatus(ctx, m.ID, status, nil, "", newAttempts); err != nil {
				log.Printf("Media worker: failed to record attempt for %s: %v", m.ID, err)
			}
			continue
		}

		if err := w.store.UpdateMediaStatus(ctx, m.ID, models.MediaStatusUploaded, &result.S3Key, result.ContentHash, m.Attempts); err != nil {
			log.Printf("Media worker: failed to update %s: %v", m.ID, err)
			failed++
			continue
		}
		processed++

		// Be polite to image CDNs.
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}

	if processed > 0 || failed > 0 {
		log.Printf("Media worker: uploaded %d, failed %d", processed, failed)
		w.logFunc(models.LogLevelInfo, "media", fmt.Sprintf("Uploaded %d photos, %d failed", processed, failed))
	}
}

// NoOpUploader drains uploads without storing them. Used when S3 is not
// configured and in tests.
type NoOpUploader struct{}

func (u *NoOpUploader) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := io.Copy(io.Discard, data)
	return err
}

func NewNoOpUploader() *NoOpUploader {
	return &NoOpUploader{}
}
