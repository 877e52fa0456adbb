package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PostRequest is what a Publisher sends to a platform.
type PostRequest struct {
	Platform    string
	Text        string
	Title       string
	AccessToken string
}

// Result identifies a published post on its platform.
type Result struct {
	PostID string `json:"platform_post_id"`
	URL    string `json:"post_url"`
}

// Publisher posts content to one platform.
type Publisher interface {
	Publish(ctx context.Context, req PostRequest) (*Result, error)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, req PostRequest) (*Result, error)

func (f PublisherFunc) Publish(ctx context.Context, req PostRequest) (*Result, error) {
	return f(ctx, req)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. a revoked token or a
// rejected payload.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// MockPublisher reports success without calling the platform. It is the
// default for every platform without a real integration.
type MockPublisher struct{}

func (MockPublisher) Publish(ctx context.Context, req PostRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := Lookup(req.Platform)
	if !ok {
		return nil, Permanent(fmt.Errorf("unknown platform %q", req.Platform))
	}
	id := "mock_" + req.Platform + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return &Result{PostID: id, URL: p.PostURL(id)}, nil
}
