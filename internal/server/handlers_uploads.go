package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/metrics"
	"github.com/clickstudio/click/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
)

// UploadSizeHeader lets clients announce the file size so progress has a
// total from the first byte.
const UploadSizeHeader = "X-Upload-Size"

// handleUpload streams the "file" part of a multipart body straight into
// storage without buffering it in memory.
func handleUpload(svc *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		mr, err := c.Request.MultipartReader()
		if err != nil {
			apierr.Abort(c, apierr.BadRequest("expected a multipart/form-data body"))
			return
		}
		declared := int64(-1)
		if raw := c.GetHeader(UploadSizeHeader); raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n >= 0 {
				declared = n
			}
		}

		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				apierr.Abort(c, apierr.BadRequest("missing file field"))
				return
			}
			if err != nil {
				apierr.Abort(c, apierr.BadRequest("malformed multipart body"))
				return
			}
			if part.FormName() != "file" {
				part.Close()
				continue
			}

			p := auth.MustPrincipal(c)
			up, err := svc.Receive(c.Request.Context(), p.WorkspaceID, p.UserID, part.FileName(), declared, part)
			part.Close()
			if err != nil {
				metrics.RecordUpload(upload.StatusFailed, 0)
				apierr.Abort(c, err)
				return
			}
			metrics.RecordUpload(up.Status, up.Size)
			apierr.OK(c, http.StatusCreated, "upload completed", gin.H{
				"upload":   up,
				"file_url": svc.FileURL(up.StoredPath),
			})
			return
		}
	}
}

func handleUploadProgress(svc *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		prog, err := svc.Progress(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		apierr.OK(c, http.StatusOK, "", prog)
	}
}

func handleUploadFile(svc *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		r, up, err := svc.Open(c.Request.Context(), p.WorkspaceID, c.Param("id"))
		if err != nil {
			apierr.Abort(c, err)
			return
		}
		defer r.Close()
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": up.Filename})
		c.DataFromReader(http.StatusOK, up.Size, up.ContentType, r, map[string]string{
			"Content-Disposition": disposition,
		})
	}
}

func handleUploadCancel(svc *upload.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := auth.MustPrincipal(c)
		if err := svc.Cancel(c.Request.Context(), p.WorkspaceID, c.Param("id")); err != nil {
			apierr.Abort(c, err)
			return
		}
		metrics.RecordUpload(upload.StatusCancelled, 0)
		apierr.OK(c, http.StatusOK, fmt.Sprintf("upload %s cancelled", c.Param("id")), nil)
	}
}

// handlePublicFile serves stored files by path, the target of upload file
// URLs. Directories are never listed.
func handlePublicFile(store *upload.Storage) gin.HandlerFunc {
	files := afero.NewHttpFs(store.Fs())
	return func(c *gin.Context) {
		name := strings.TrimPrefix(path.Clean("/"+c.Param("filepath")), "/")
		f, err := files.Open(name)
		if err != nil {
			apierr.Abort(c, apierr.NotFound("file"))
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			apierr.Abort(c, apierr.NotFound("file"))
			return
		}
		http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
	}
}
