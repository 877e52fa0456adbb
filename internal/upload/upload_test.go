package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/db/dbtest"
	"github.com/clickstudio/click/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func pngBytes(size int) []byte {
	b := make([]byte, size)
	copy(b, pngHeader)
	return b
}

func newTestService(t *testing.T, maxBytes int64) (*Service, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	svc := NewService(dbtest.Open(t), NewStorage(fs, ""), NewTracker(time.Hour, nil), Options{
		MaxBytes:     maxBytes,
		AllowedTypes: []string{"video/", "audio/", "image/"},
	})
	return svc, fs
}

func TestReceive_StoresFile(t *testing.T) {
	svc, fs := newTestService(t, 1<<20)
	ctx := context.Background()
	data := pngBytes(10_000)

	up, err := svc.Receive(ctx, "ws", "u", "../../Thumb.PNG", int64(len(data)), bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Thumb.PNG", up.Filename)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, int64(len(data)), up.Size)
	assert.Equal(t, StatusCompleted, up.Status)
	assert.True(t, strings.HasPrefix(up.StoredPath, "ws/"))
	assert.True(t, strings.HasSuffix(up.StoredPath, ".png"))

	stored, err := afero.ReadFile(fs, up.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	p, err := svc.Progress(ctx, "ws", up.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, "/files/"+up.StoredPath, p.FileURL)

	rc, got, err := svc.Open(ctx, "ws", up.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Len(t, body, len(data))
	assert.Equal(t, up.ID, got.ID)
}

func TestReceive_RejectsType(t *testing.T) {
	svc, _ := newTestService(t, 1<<20)
	ctx := context.Background()

	_, err := svc.Receive(ctx, "ws", "u", "notes.txt", -1, strings.NewReader("just some text"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnsupportedMediaType, apierr.Status(err))

	var ups []models.Upload
	require.NoError(t, svc.db.Find(&ups).Error)
	require.Len(t, ups, 1)
	assert.Equal(t, StatusFailed, ups[0].Status)
	assert.Contains(t, ups[0].Error, "text/plain")
}

func TestReceive_TooLarge(t *testing.T) {
	svc, fs := newTestService(t, 4096)
	ctx := context.Background()

	_, err := svc.Receive(ctx, "ws", "u", "big.png", 10_000, bytes.NewReader(pngBytes(10_000)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apierr.Status(err), "declared size over limit")

	// Size not declared: the limit is enforced while copying and the partial
	// file is removed.
	_, err = svc.Receive(ctx, "ws", "u", "big.png", -1, bytes.NewReader(pngBytes(10_000)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apierr.Status(err))

	entries, _ := afero.ReadDir(fs, "ws")
	assert.Empty(t, entries)
}

func TestProgress_WorkspaceScoped(t *testing.T) {
	svc, _ := newTestService(t, 1<<20)
	ctx := context.Background()
	up, err := svc.Receive(ctx, "ws", "u", "a.png", -1, bytes.NewReader(pngBytes(100)))
	require.NoError(t, err)

	_, err = svc.Progress(ctx, "other", up.ID)
	assert.Equal(t, http.StatusNotFound, apierr.Status(err))
}

func TestProgress_FallsBackToRecord(t *testing.T) {
	svc, _ := newTestService(t, 1<<20)
	ctx := context.Background()
	up, err := svc.Receive(ctx, "ws", "u", "a.png", -1, bytes.NewReader(pngBytes(100)))
	require.NoError(t, err)

	// A fresh tracker has no entry for the upload.
	svc.tracker = NewTracker(time.Hour, nil)
	p, err := svc.Progress(ctx, "ws", up.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, int64(100), p.TotalBytes)
}

func TestCancel_RemovesFile(t *testing.T) {
	svc, fs := newTestService(t, 1<<20)
	ctx := context.Background()
	up, err := svc.Receive(ctx, "ws", "u", "a.png", -1, bytes.NewReader(pngBytes(100)))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, "ws", up.ID))
	exists, _ := afero.Exists(fs, up.StoredPath)
	assert.False(t, exists)

	got, err := svc.Get(ctx, "ws", up.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)

	_, _, err = svc.Open(ctx, "ws", up.ID)
	assert.Equal(t, http.StatusConflict, apierr.Status(err))
}

// cancelAfterReader serves n-byte chunks of data and runs onRead before the
// read numbered at.
type cancelAfterReader struct {
	data   []byte
	chunk  int
	reads  int
	at     int
	onRead func()
}

func (r *cancelAfterReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	r.reads++
	if r.reads == r.at && r.onRead != nil {
		r.onRead()
	}
	n := min(r.chunk, len(p), len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestCancel_StopsStreamingUpload(t *testing.T) {
	svc, fs := newTestService(t, 1<<20)
	ctx := context.Background()

	var cancelErr error
	src := &cancelAfterReader{data: pngBytes(200_000), chunk: 1024, at: 10}
	src.onRead = func() {
		var rec models.Upload
		require.NoError(t, svc.db.Where("workspace_id = ?", "ws").First(&rec).Error)
		cancelErr = svc.Cancel(ctx, "ws", rec.ID)
	}

	_, err := svc.Receive(ctx, "ws", "u", "big.png", -1, src)
	require.NoError(t, cancelErr)
	assert.Equal(t, http.StatusConflict, apierr.Status(err))
	assert.NotEmpty(t, src.data, "streaming should stop before the body is consumed")

	var rec models.Upload
	require.NoError(t, svc.db.Where("workspace_id = ?", "ws").First(&rec).Error)
	assert.Equal(t, StatusCancelled, rec.Status)
	assert.Empty(t, rec.StoredPath)

	files, _ := afero.ReadDir(fs, "ws")
	assert.Empty(t, files, "partial file must be removed")

	p, err := svc.Tracker().Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, p.Status)
}

func TestReceive_CancelledBeforeRecordKeepsCancellation(t *testing.T) {
	svc, fs := newTestService(t, 1<<20)
	ctx := context.Background()

	// The record is cancelled directly, bypassing this tracker, as a cancel
	// served by another instance would be.
	data := pngBytes(4096)
	src := &cancelAfterReader{data: data, chunk: len(data), at: 1}
	src.onRead = func() {
		var rec models.Upload
		require.NoError(t, svc.db.Where("workspace_id = ?", "ws").First(&rec).Error)
		require.NoError(t, svc.db.Model(&rec).Update("status", StatusCancelled).Error)
	}

	_, err := svc.Receive(ctx, "ws", "u", "late.png", -1, src)
	assert.Equal(t, http.StatusConflict, apierr.Status(err))

	var rec models.Upload
	require.NoError(t, svc.db.Where("workspace_id = ?", "ws").First(&rec).Error)
	assert.Equal(t, StatusCancelled, rec.Status)
	files, _ := afero.ReadDir(fs, "ws")
	assert.Empty(t, files)
}

func TestRegister(t *testing.T) {
	svc, fs := newTestService(t, 1<<20)
	ctx := context.Background()
	p := svc.Storage().NewPath("ws", "mastered.mp3")
	require.NoError(t, afero.WriteFile(fs, p, []byte("ID3audio"), 0o644))

	up, err := svc.Register(ctx, "ws", "u", "mastered.mp3", p, "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(8), up.Size)
	assert.Equal(t, StatusCompleted, up.Status)

	_, err = svc.Register(ctx, "ws", "u", "gone.mp3", "ws/gone.mp3", "audio/mpeg")
	assert.Equal(t, http.StatusNotFound, apierr.Status(err))
}

func TestSniffReplaysHead(t *testing.T) {
	data := pngBytes(5000)
	ct, r, err := Sniff(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	out, _ := io.ReadAll(r)
	assert.Equal(t, data, out)

	ct, r, err = Sniff(bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	out, _ = io.ReadAll(r)
	assert.Equal(t, pngHeader, out)
}

func TestAllowed(t *testing.T) {
	prefixes := []string{"video/", "audio/"}
	assert.True(t, Allowed("video/mp4", prefixes))
	assert.True(t, Allowed("audio/mpeg", prefixes))
	assert.False(t, Allowed("image/png", prefixes))
	assert.False(t, Allowed("text/plain; charset=utf-8", prefixes))
}
