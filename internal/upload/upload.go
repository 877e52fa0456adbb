// Package upload receives media files, stores them through afero and
// tracks per-upload progress for polling and event-stream clients.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Options configures a Service.
type Options struct {
	MaxBytes     int64
	AllowedTypes []string
	// PublicPrefix is joined with the stored path to build file URLs.
	PublicPrefix string
}

// Service stores uploads and records them in the database.
type Service struct {
	db      *gorm.DB
	store   *Storage
	tracker *Tracker
	opts    Options
}

// NewService returns an upload Service.
func NewService(gdb *gorm.DB, store *Storage, tracker *Tracker, opts Options) *Service {
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = "/files"
	}
	return &Service{db: gdb, store: store, tracker: tracker, opts: opts}
}

// Storage returns the file store.
func (s *Service) Storage() *Storage { return s.store }

// Tracker returns the progress tracker.
func (s *Service) Tracker() *Tracker { return s.tracker }

// FileURL returns the public URL for a stored path.
func (s *Service) FileURL(storedPath string) string {
	return strings.TrimRight(s.opts.PublicPrefix, "/") + "/" + storedPath
}

// errUnsupportedType is the API error for disallowed content.
func errUnsupportedType(ct string) *apierr.Error {
	return apierr.New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", fmt.Sprintf("file type %s is not allowed", ct))
}

func errCancelled() *apierr.Error {
	return apierr.Conflict("upload was cancelled")
}

// Receive stores the file read from r. declaredSize may be -1 when unknown.
// Progress is tracked under the returned upload's ID from the first byte.
func (s *Service) Receive(ctx context.Context, workspaceID, ownerID, filename string, declaredSize int64, r io.Reader) (*models.Upload, error) {
	log := zerolog.Ctx(ctx)
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = "upload"
	}
	if s.opts.MaxBytes > 0 && declaredSize > s.opts.MaxBytes {
		return nil, apierr.TooLarge(fmt.Sprintf("file exceeds the %d byte limit", s.opts.MaxBytes))
	}

	up := &models.Upload{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		Filename:    filename,
		Status:      StatusInitializing,
	}
	if err := s.db.WithContext(ctx).Create(up).Error; err != nil {
		return nil, fmt.Errorf("upload: create record: %w", err)
	}
	s.tracker.Initialize(ctx, up.ID, filename, declaredSize)

	fail := func(cause error, apiErr error) (*models.Upload, error) {
		ae := apierr.From(apiErr)
		if _, err := s.tracker.Fail(ctx, up.ID, ae.Message); err != nil {
			log.Warn().Err(err).Str("upload_id", up.ID).Msg("mark upload failed")
		}
		up.Status = StatusFailed
		up.Error = ae.Message
		if err := s.db.WithContext(ctx).Model(up).Updates(map[string]interface{}{"status": up.Status, "error": up.Error}).Error; err != nil {
			log.Error().Err(err).Str("upload_id", up.ID).Msg("record failed upload")
		}
		log.Warn().Err(cause).Str("upload_id", up.ID).Str("filename", filename).Msg("upload failed")
		return nil, ae
	}

	contentType, body, err := Sniff(r)
	if err != nil {
		return fail(err, err)
	}
	if !Allowed(contentType, s.opts.AllowedTypes) {
		return fail(fmt.Errorf("content type %s", contentType), errUnsupportedType(contentType))
	}
	up.ContentType = contentType

	storedPath := s.store.NewPath(workspaceID, filename)
	report := func(n int64) error {
		_, err := s.tracker.Update(ctx, up.ID, n, -1)
		if apierr.Status(err) == http.StatusConflict {
			return ErrCancelled
		}
		if err != nil {
			log.Debug().Err(err).Str("upload_id", up.ID).Msg("progress update dropped")
		}
		return nil
	}
	size, err := s.store.Write(storedPath, body, s.opts.MaxBytes, report)
	if errors.Is(err, ErrCancelled) {
		log.Info().Str("upload_id", up.ID).Int64("bytes", size).Msg("upload cancelled while streaming")
		return nil, errCancelled()
	}
	if errors.Is(err, ErrTooLarge) {
		return fail(err, apierr.TooLarge(fmt.Sprintf("file exceeds the %d byte limit", s.opts.MaxBytes)))
	}
	if err != nil {
		return fail(err, err)
	}

	// A cancel that lands after the last chunk is still honoured.
	res := s.db.WithContext(ctx).Model(&models.Upload{}).
		Where("id = ? AND status <> ?", up.ID, StatusCancelled).
		Updates(map[string]interface{}{
			"stored_path":  storedPath,
			"size":         size,
			"content_type": up.ContentType,
			"status":       StatusCompleted,
		})
	if res.Error != nil {
		_ = s.store.Remove(storedPath)
		return fail(res.Error, fmt.Errorf("upload: record %s: %w", up.ID, res.Error))
	}
	if res.RowsAffected == 0 {
		_ = s.store.Remove(storedPath)
		return nil, errCancelled()
	}
	up.StoredPath = storedPath
	up.Size = size
	up.Status = StatusCompleted
	if _, err := s.tracker.Complete(ctx, up.ID, s.FileURL(storedPath)); err != nil {
		log.Warn().Err(err).Str("upload_id", up.ID).Msg("mark upload complete")
	}
	log.Info().Str("upload_id", up.ID).Str("filename", filename).Int64("bytes", size).Str("content_type", contentType).Msg("upload completed")
	return up, nil
}

// Register records a file already written to storage, such as ffmpeg
// output, as a completed upload.
func (s *Service) Register(ctx context.Context, workspaceID, ownerID, filename, storedPath, contentType string) (*models.Upload, error) {
	info, err := s.store.Fs().Stat(storedPath)
	if err != nil {
		return nil, fmt.Errorf("upload: stat %s: %w", storedPath, err)
	}
	up := &models.Upload{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		Filename:    filename,
		StoredPath:  storedPath,
		ContentType: contentType,
		Size:        info.Size(),
		Status:      StatusCompleted,
	}
	if err := s.db.WithContext(ctx).Create(up).Error; err != nil {
		return nil, fmt.Errorf("upload: register %s: %w", storedPath, err)
	}
	return up, nil
}

// Get loads an upload record within the workspace.
func (s *Service) Get(ctx context.Context, workspaceID, id string) (*models.Upload, error) {
	var up models.Upload
	err := s.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload")
	}
	if err != nil {
		return nil, fmt.Errorf("upload: get %s: %w", id, err)
	}
	return &up, nil
}

// Progress returns live progress for an upload in the workspace. Once the
// tracker has forgotten the upload, progress is rebuilt from the record.
func (s *Service) Progress(ctx context.Context, workspaceID, id string) (Progress, error) {
	up, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return Progress{}, err
	}
	p, err := s.tracker.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if apierr.Status(err) != http.StatusNotFound {
		return Progress{}, err
	}
	p = Progress{
		UploadID:      up.ID,
		Filename:      up.Filename,
		Status:        up.Status,
		BytesUploaded: up.Size,
		TotalBytes:    up.Size,
		Error:         up.Error,
		StartedAt:     up.CreatedAt,
		UpdatedAt:     up.UpdatedAt,
	}
	if up.Status == StatusCompleted {
		p.Percent = 100
		p.FileURL = s.FileURL(up.StoredPath)
	}
	return p, nil
}

// Open returns a reader for a completed upload.
func (s *Service) Open(ctx context.Context, workspaceID, id string) (io.ReadCloser, *models.Upload, error) {
	up, err := s.Get(ctx, workspaceID, id)
	if err != nil {
		return nil, nil, err
	}
	if up.Status != StatusCompleted || up.StoredPath == "" {
		return nil, nil, apierr.Conflict(fmt.Sprintf("upload is %s", up.Status))
	}
	f, err := s.store.Open(up.StoredPath)
	if err != nil {
		return nil, nil, err
	}
	return f, up, nil
}

// Cancel stops tracking an upload, removes its file and marks it
// cancelled. An upload still streaming stops at its next chunk and removes
// its own partial file.
func (s *Service) Cancel(ctx context.Context, workspaceID, id string) error {
	if _, err := s.Get(ctx, workspaceID, id); err != nil {
		return err
	}
	if _, err := s.tracker.Cancel(ctx, id); err != nil && apierr.Status(err) >= http.StatusInternalServerError {
		return err
	}
	// Retry when Receive records its file between our read and write, so
	// the file it stored is removed too.
	for range 3 {
		up, err := s.Get(ctx, workspaceID, id)
		if err != nil {
			return err
		}
		if up.Status == StatusCancelled && up.StoredPath == "" {
			return nil
		}
		res := s.db.WithContext(ctx).Model(&models.Upload{}).
			Where("id = ? AND status = ? AND stored_path = ?", id, up.Status, up.StoredPath).
			Updates(map[string]interface{}{"status": StatusCancelled, "stored_path": ""})
		if res.Error != nil {
			return fmt.Errorf("upload: cancel %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		if up.StoredPath != "" {
			return s.store.Remove(up.StoredPath)
		}
		return nil
	}
	return apierr.Conflict("upload changed while cancelling; retry")
}
