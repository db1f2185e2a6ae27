package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"time"

	errs "docharvest/pkg/errors"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
)

// RodBrowser drives a Chromium instance. Each session is an incognito
// browser context with a single page.
type RodBrowser struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	userAgent string
	timeout   time.Duration
}

// RodOptions configures the Chromium launch
type RodOptions struct {
	Headless  bool
	BinPath   string
	UserAgent string
	Timeout   time.Duration
}

// NewRodBrowser launches Chromium and connects to it
func NewRodBrowser(ctx context.Context, opts RodOptions) (*RodBrowser, error) {
	l := launcher.New().
		Context(ctx).
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled")

	if opts.BinPath != "" {
		l = l.Bin(opts.BinPath)
	} else if path, found := launcher.LookPath(); found {
		l = l.Bin(path)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodBrowser{
		launcher:  l,
		browser:   browser,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}, nil
}

// NewSession opens an incognito context and a blank page in it. ctx bounds
// only the setup calls.
func (b *RodBrowser) NewSession(ctx context.Context) (Session, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	release := func() { _ = incognito.Context(context.Background()).Close() }

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			release()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return &rodSession{
		id:        uuid.NewString(),
		incognito: incognito.Context(context.Background()),
		page:      page.Context(context.Background()),
		timeout:   b.timeout,
	}, nil
}

// Close shuts the browser down and removes the launcher's temp profile
func (b *RodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodSession struct {
	id        string
	incognito *rod.Browser
	page      *rod.Page
	timeout   time.Duration
	ua        string
}

func (s *rodSession) ID() string {
	return s.id
}

func (s *rodSession) Bootstrap(ctx context.Context, url string) error {
	return s.navigate(ctx, url)
}

func (s *rodSession) navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return errs.Wrap(errs.ErrorTypeTransport, err, "navigation failed")
	}
	if err := page.WaitLoad(); err != nil {
		return errs.Wrap(errs.ErrorTypeTransport, err, "page did not load")
	}
	return nil
}

// Render navigates, waits for load, then waits best-effort for a matching link
func (s *rodSession) Render(ctx context.Context, url string, opts RenderOptions) (string, error) {
	if err := s.navigate(ctx, url); err != nil {
		return "", err
	}

	if opts.WaitLinkSuffix != "" && opts.WaitTimeout > 0 {
		s.waitForLinkBestEffort(ctx, opts)
	}

	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeTransport, err, "failed to read page markup")
	}
	return html, nil
}

// waitForLinkBestEffort never fails; a listing without matching links is
// still extracted as-is.
func (s *rodSession) waitForLinkBestEffort(ctx context.Context, opts RenderOptions) {
	// rod evaluates the pattern as a JS RegExp literal
	pattern := "/" + regexp.QuoteMeta(opts.WaitLinkSuffix) + `\s*$/i`
	_, _ = s.page.Context(ctx).Timeout(opts.WaitTimeout).ElementR("a", pattern)
}

// Fetch issues the GET over net/http carrying the context's cookies and the
// page's user agent, so the request looks like it came from the page.
func (s *rodSession) Fetch(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	client, ua, err := s.httpClient(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "failed to build request")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
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

func (s *rodSession) httpClient(ctx context.Context, rawURL string) (*http.Client, string, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrorTypeTransport, err, "invalid URL")
	}

	page := s.page.Context(ctx)
	cookies, err := page.Cookies([]string{rawURL})
	if err != nil {
		return nil, "", errs.Wrap(errs.ErrorTypeTransport, err, "failed to read session cookies")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	jar.SetCookies(target, httpCookies)

	if s.ua == "" {
		res, err := page.Eval(`() => navigator.userAgent`)
		if err != nil {
			return nil, "", errs.Wrap(errs.ErrorTypeTransport, err, "failed to read user agent")
		}
		s.ua = res.Value.String()
	}

	return &http.Client{Jar: jar, Timeout: s.timeout}, s.ua, nil
}

// Close disposes the incognito context, which closes its page
func (s *rodSession) Close() error {
	err := s.incognito.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
