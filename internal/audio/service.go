package audio

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/logging"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/models"
	"github.com/clickstudio/click/internal/upload"
)

// Service masters uploaded audio and video files.
type Service struct {
	runner  Runner
	uploads *upload.Service
}

// NewService returns a mastering service writing results through uploads.
func NewService(runner Runner, uploads *upload.Service) *Service {
	return &Service{runner: runner, uploads: uploads}
}

// MasterRequest selects the upload to master and how.
type MasterRequest struct {
	UploadID string `json:"upload_id" binding:"required"`
	MasterOptions
}

// Master runs the master chain on a completed upload and registers the
// output as a new upload in the same workspace.
func (s *Service) Master(ctx context.Context, workspaceID, ownerID string, req MasterRequest) (*models.Upload, error) {
	if err := req.Validate(); err != nil {
		return nil, apierr.BadRequest(strings.TrimPrefix(err.Error(), "audio: "))
	}
	src, err := s.uploads.Get(ctx, workspaceID, req.UploadID)
	if err != nil {
		return nil, err
	}
	if src.Status != upload.StatusCompleted {
		return nil, apierr.Conflict("upload is not complete")
	}
	if !strings.HasPrefix(src.ContentType, "audio/") && !strings.HasPrefix(src.ContentType, "video/") {
		return nil, apierr.New(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
			"only audio and video uploads can be mastered")
	}

	store := s.uploads.Storage()
	in := store.LocalPath(src.StoredPath)

	var duration float64
	if req.FadeOut > 0 {
		if duration, err = s.runner.Duration(ctx, in); err != nil {
			return nil, s.fail(err, "could not read media duration")
		}
	}
	chain, err := MasterChain(req.MasterOptions, duration)
	if err != nil {
		return nil, apierr.BadRequest(strings.TrimPrefix(err.Error(), "audio: "))
	}

	outPath := store.NewPath(workspaceID, src.Filename)
	args := []string{"-y", "-i", in, "-af", chain}
	if strings.HasPrefix(src.ContentType, "video/") {
		args = append(args, "-c:v", "copy")
	}
	args = append(args, store.LocalPath(outPath))

	start := time.Now()
	_, err = s.runner.FFmpeg(ctx, args...)
	metrics.RecordAudioMaster(time.Since(start), err)
	if err != nil {
		_ = store.Remove(outPath)
		return nil, s.fail(err, "audio mastering failed")
	}
	logging.Ctx(ctx).Info().
		Str("upload_id", src.ID).
		Str("chain", chain).
		Dur("elapsed", time.Since(start)).
		Msg("audio mastered")

	return s.uploads.Register(ctx, workspaceID, ownerID, masteredName(src.Filename), outPath, src.ContentType)
}

func (s *Service) fail(err error, message string) error {
	if errors.Is(err, ErrFFmpegMissing) {
		return apierr.Wrap(err, http.StatusServiceUnavailable, "FFMPEG_UNAVAILABLE", "audio processing is not available on this server")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apierr.Wrap(err, http.StatusGatewayTimeout, "PROCESSING_TIMEOUT", message)
	}
	return apierr.Wrap(err, http.StatusUnprocessableEntity, "PROCESSING_ERROR", message)
}

// masteredName turns "episode.mp3" into "episode-mastered.mp3".
func masteredName(filename string) string {
	ext := path.Ext(filename)
	return strings.TrimSuffix(filename, ext) + "-mastered" + ext
}
