package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"

	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bootstrapURL = "http://site.test/listing?page=0"
	fileURL      = "http://site.test/files/a.pdf"
)

func newMockBrowser() (*HTTPBrowser, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	b := NewHTTPBrowser("", 5*time.Second)
	b.Transport = transport
	return b, transport
}

func TestHTTPSessionCarriesBootstrapCookies(t *testing.T) {
	b, transport := newMockBrowser()

	transport.RegisterResponder("GET", bootstrapURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(200, "<html></html>")
		resp.Header.Set("Set-Cookie", "ak_bmsc=token; Path=/")
		return resp, nil
	})
	transport.RegisterResponder("GET", fileURL, func(req *http.Request) (*http.Response, error) {
		cookie, err := req.Cookie("ak_bmsc")
		if err != nil || cookie.Value != "token" {
			return httpmock.NewStringResponse(401, ""), nil
		}
		if req.Header.Get("Referer") != "http://site.test/listing" {
			return httpmock.NewStringResponse(403, ""), nil
		}
		if req.Header.Get("User-Agent") != DefaultUserAgent {
			return httpmock.NewStringResponse(400, ""), nil
		}
		return httpmock.NewStringResponse(200, "%PDF"), nil
	})

	s, err := b.NewSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	// without bootstrap the file endpoint rejects the request
	resp, err := s.Fetch(context.Background(), fileURL, http.Header{"Referer": {"http://site.test/listing"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)

	require.NoError(t, s.Bootstrap(context.Background(), bootstrapURL))

	resp, err = s.Fetch(context.Background(), fileURL, http.Header{"Referer": {"http://site.test/listing"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "%PDF", string(body))
}

func TestHTTPSessionsHaveSeparateJars(t *testing.T) {
	b, transport := newMockBrowser()
	transport.RegisterResponder("GET", bootstrapURL, func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(200, "")
		resp.Header.Set("Set-Cookie", "sid=1; Path=/")
		return resp, nil
	})
	transport.RegisterResponder("GET", fileURL, func(req *http.Request) (*http.Response, error) {
		if _, err := req.Cookie("sid"); err != nil {
			return httpmock.NewStringResponse(401, ""), nil
		}
		return httpmock.NewStringResponse(200, "x"), nil
	})

	first, err := b.NewSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Bootstrap(context.Background(), bootstrapURL))

	second, err := b.NewSession(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())

	resp, err := second.Fetch(context.Background(), fileURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
}

func TestHTTPSessionRenderKeepsErrorPages(t *testing.T) {
	b, transport := newMockBrowser()
	transport.RegisterResponder("GET", "http://site.test/listing?page=1",
		httpmock.NewStringResponder(403, `<html><a href="/files/a.pdf">a.pdf</a></html>`))
	transport.RegisterResponder("GET", "http://site.test/listing?page=2", httpmock.NewErrorResponder(errors.New("connection reset")))

	s, err := b.NewSession(context.Background())
	require.NoError(t, err)

	html, err := s.Render(context.Background(), "http://site.test/listing?page=1", RenderOptions{})
	require.NoError(t, err)
	assert.Contains(t, html, "a.pdf")
	require.NoError(t, s.Bootstrap(context.Background(), "http://site.test/listing?page=1"))

	_, err = s.Render(context.Background(), "http://site.test/listing?page=2", RenderOptions{})
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeTransport, errs.TypeOf(err))
}

// fakeSession and fakeBrowser record lifecycle calls for the manager tests
type fakeSession struct {
	id           string
	bootstrapErr error
	closeErr     error
	bootstrapped []string
	closed       bool
}

func (f *fakeSession) ID() string { return f.id }
func (f *fakeSession) Bootstrap(ctx context.Context, url string) error {
	f.bootstrapped = append(f.bootstrapped, url)
	return f.bootstrapErr
}
func (f *fakeSession) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	return "", nil
}
func (f *fakeSession) Fetch(ctx context.Context, url string, header http.Header) (*Response, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeSession) Close() error {
	f.closed = true
	return f.closeErr
}

type fakeBrowser struct {
	sessions  []*fakeSession
	next      func(n int) *fakeSession
	closed    bool
	deadlines []bool
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	_, hasDeadline := ctx.Deadline()
	b.deadlines = append(b.deadlines, hasDeadline)
	s := b.next(len(b.sessions))
	b.sessions = append(b.sessions, s)
	return s, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

func TestManagerRotate(t *testing.T) {
	browser := &fakeBrowser{next: func(n int) *fakeSession {
		return &fakeSession{id: string(rune('a' + n)), closeErr: errors.New("already gone")}
	}}
	log := logger.NewTestLogger()
	m := metrics.New()
	mgr := NewManager(browser, bootstrapURL, time.Second, log, m)

	assert.Nil(t, mgr.Current())

	first, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, mgr.Current())
	assert.Equal(t, []string{bootstrapURL}, browser.sessions[0].bootstrapped)

	second, err := mgr.Rotate(context.Background(), ReasonAuthStreak)
	require.NoError(t, err)
	assert.Equal(t, "b", second.ID())
	assert.True(t, browser.sessions[0].closed)
	assert.Equal(t, second, mgr.Current())

	// the failed close is logged, not returned
	assert.True(t, log.HasMessage("Session close failed"))
	assert.True(t, log.HasMessage("Session rotated"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRotations.WithLabelValues("auth_streak")))

	mgr.Close()
	assert.True(t, browser.sessions[1].closed)
	assert.True(t, browser.closed)
	assert.Nil(t, mgr.Current())
}

func TestManagerAcquireBootstrapFailure(t *testing.T) {
	browser := &fakeBrowser{next: func(n int) *fakeSession {
		return &fakeSession{id: "x", bootstrapErr: errors.New("timeout")}
	}}
	mgr := NewManager(browser, bootstrapURL, time.Second, logger.NewNopLogger(), nil)

	_, err := mgr.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, browser.sessions[0].closed, "failed session should be released")
	assert.Nil(t, mgr.Current())
}

func TestManagerAcquireBoundsSessionCreation(t *testing.T) {
	browser := &fakeBrowser{next: func(n int) *fakeSession { return &fakeSession{id: "x"} }}
	mgr := NewManager(browser, bootstrapURL, time.Second, logger.NewNopLogger(), nil)

	_, err := mgr.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, browser.deadlines)
}

func TestNewBrowserEngines(t *testing.T) {
	b, err := NewBrowser(context.Background(), &config.BrowserConfig{Engine: "HTTP", NavigationTimeout: time.Second})
	require.NoError(t, err)
	assert.IsType(t, &HTTPBrowser{}, b)

	_, err = NewBrowser(context.Background(), &config.BrowserConfig{Engine: "lynx"})
	assert.Error(t, err)
}
