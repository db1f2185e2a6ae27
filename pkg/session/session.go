package session

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Response is the result of a document fetch. The caller must close Body.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          io.ReadCloser
	ContentLength int64
}

// RenderOptions controls the optional wait performed after a page loads
type RenderOptions struct {
	// WaitLinkSuffix, when set, waits for an anchor whose text ends with it
	WaitLinkSuffix string
	// WaitTimeout bounds the link wait. Expiry is not an error.
	WaitTimeout time.Duration
}

// Session is one cookie and identity scope
type Session interface {
	ID() string
	// Bootstrap visits url so that subsequent requests carry its cookies
	Bootstrap(ctx context.Context, url string) error
	// Render loads url and returns the page markup
	Render(ctx context.Context, url string, opts RenderOptions) (string, error)
	// Fetch issues a GET through the session
	Fetch(ctx context.Context, url string, header http.Header) (*Response, error)
	Close() error
}

// Browser creates sessions
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Reason explains why a session was replaced
type Reason string

const (
	ReasonAuthStreak      Reason = "auth_streak"
	ReasonSuccessInterval Reason = "success_interval"
	// ReasonRecovery replaces a session lost to an earlier failed rotation
	ReasonRecovery Reason = "recovery"
)
