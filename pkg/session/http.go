package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	errs "docharvest/pkg/errors"

	"github.com/google/uuid"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxPageSize caps listing markup read by the plain HTTP engine
const maxPageSize = 16 << 20

// HTTPBrowser creates cookie-jar sessions over plain HTTP. It works for
// listing sites that render server-side.
type HTTPBrowser struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the default transport, mainly for tests
	Transport http.RoundTripper
}

// NewHTTPBrowser creates an HTTP session factory
func NewHTTPBrowser(userAgent string, timeout time.Duration) *HTTPBrowser {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPBrowser{UserAgent: userAgent, Timeout: timeout}
}

// NewSession returns a session with an empty cookie jar
func (b *HTTPBrowser) NewSession(ctx context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := b.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &httpSession{
		id:        uuid.NewString(),
		userAgent: b.UserAgent,
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   b.Timeout,
		},
	}, nil
}

// Close is a no-op; each session owns its client
func (b *HTTPBrowser) Close() error {
	return nil
}

type httpSession struct {
	id        string
	userAgent string
	client    *http.Client
}

func (s *httpSession) ID() string {
	return s.id
}

func (s *httpSession) Bootstrap(ctx context.Context, url string) error {
	_, err := s.Render(ctx, url, RenderOptions{})
	return err
}

// Render fetches the page markup whatever the status code, as a browser
// would show it. The link wait is a no-op for static pages.
func (s *httpSession) Render(ctx context.Context, url string, _ RenderOptions) (string, error) {
	resp, err := s.Fetch(ctx, url, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeTransport, err, "failed to read page")
	}
	return string(body), nil
}

func (s *httpSession) Fetch(ctx context.Context, url string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "failed to build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "request failed")
	}

	return &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
	}, nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
