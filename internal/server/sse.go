package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/upload"
	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 15 * time.Second

// handleUploadEvents streams progress for one upload as server-sent events.
// A "progress" event is sent whenever the upload changes; the stream ends
// with an event named after the terminal status.
func handleUploadEvents(svc *upload.Service, opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		ctx := c.Request.Context()
		id := c.Param("id")

		prog, err := svc.Progress(ctx, p.WorkspaceID, id)
		if err != nil {
			apierr.Abort(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"upload_id": id})
		last := prog
		if !emitProgress(c, prog) {
			return
		}

		ticker := time.NewTicker(opts.EventInterval)
		heartbeat := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-opts.streams.Done():
				writeSSE(c.Writer, "shutdown", map[string]string{"upload_id": id})
				c.Writer.Flush()
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				prog, err := svc.Progress(ctx, p.WorkspaceID, id)
				if err != nil {
					writeSSE(c.Writer, "error", map[string]string{"error": apierr.From(err).Message})
					c.Writer.Flush()
					return
				}
				if prog.Status == last.Status && prog.BytesUploaded == last.BytesUploaded {
					continue
				}
				last = prog
				if !emitProgress(c, prog) {
					return
				}
			}
		}
	}
}

// emitProgress writes one progress event and reports whether the stream
// should continue.
func emitProgress(c *gin.Context, prog upload.Progress) bool {
	if prog.Terminal() {
		writeSSE(c.Writer, prog.Status, prog)
		c.Writer.Flush()
		return false
	}
	writeSSE(c.Writer, "progress", prog)
	c.Writer.Flush()
	return true
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
