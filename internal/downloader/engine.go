package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"docharvest/pkg/config"
	errs "docharvest/pkg/errors"
	"docharvest/pkg/logger"
	"docharvest/pkg/metrics"
	"docharvest/pkg/retry"
	"docharvest/pkg/session"
	"docharvest/pkg/storage"
)

// DocumentStorage persists downloaded documents
type DocumentStorage interface {
	Path(name string) string
	IsDownloaded(name string) bool
	Save(r io.Reader, name string) (int64, error)
}

// SessionProvider exposes the active session and replaces it on demand
type SessionProvider interface {
	Current() session.Session
	Rotate(ctx context.Context, reason session.Reason) (session.Session, error)
}

// RunState carries the counters that span files within one run
type RunState struct {
	SuccessCount int
	AuthStreak   int
}

// Result lists what the run produced. Downloaded holds paths, Failed holds
// filenames.
type Result struct {
	Downloaded []string
	Failed     []string
	Skipped    int
	Fetched    int
}

// Policy holds the retry and rotation thresholds
type Policy struct {
	MaxAttempts         int
	AuthStreakThreshold int
	RotateEvery         int
	RequestTimeout      time.Duration
	AuthBackoff         retry.BackoffStrategy
	ErrorBackoff        retry.BackoffStrategy
	Pace                *retry.JitteredDelay
}

// PolicyFromConfig builds the policy from the retry and download sections
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts:         cfg.Retry.MaxAttempts,
		AuthStreakThreshold: cfg.Retry.AuthStreakThreshold,
		RotateEvery:         cfg.Retry.RotateEvery,
		RequestTimeout:      cfg.Download.RequestTimeout,
		AuthBackoff:         retry.AuthBackoff(cfg.Retry.AuthBackoffMax, cfg.Retry.AuthBackoffJitter),
		ErrorBackoff: &retry.LinearBackoff{
			Step:     cfg.Retry.BackoffStep,
			Jitter:   cfg.Retry.BackoffJitter,
			MaxDelay: cfg.Retry.BackoffMax,
		},
		Pace: &retry.JitteredDelay{
			Base:   cfg.Download.BaseDelay,
			Jitter: cfg.Download.Jitter,
		},
	}
}

// Engine downloads documents one at a time through the active session
type Engine struct {
	sessions    SessionProvider
	storage     DocumentStorage
	policy      Policy
	fileBaseURL string
	referer     string
	sleeper     retry.Sleeper
	logger      logger.Logger
	metrics     *metrics.Metrics

	// OnTransition, when set, observes every state change
	OnTransition func(filename string, state State)
}

// NewEngine creates a download engine
func NewEngine(
	sessions SessionProvider,
	storage DocumentStorage,
	policy Policy,
	site config.SiteConfig,
	log logger.Logger,
	m *metrics.Metrics,
) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		sessions:    sessions,
		storage:     storage,
		policy:      policy,
		fileBaseURL: site.FileBaseURL,
		referer:     site.Referer,
		sleeper:     retry.TimerSleeper,
		logger:      log.WithField("component", "downloader"),
		metrics:     m,
	}
}

// WithSleeper replaces the timer used for pacing and backoff
func (e *Engine) WithSleeper(s retry.Sleeper) *Engine {
	e.sleeper = s
	return e
}

// FileURL returns the document URL for a filename
func (e *Engine) FileURL(name string) string {
	return e.fileBaseURL + url.PathEscape(name)
}

// Run downloads every filename in order. It only returns an error when ctx
// ends; the partial result is still returned.
func (e *Engine) Run(ctx context.Context, filenames []string, st *RunState) (Result, error) {
	var result Result

	for i, name := range filenames {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if e.storage.IsDownloaded(name) {
			result.Downloaded = append(result.Downloaded, e.storage.Path(name))
			result.Skipped++
			e.metrics.IncSkipped()
			e.logger.DebugWithFields("Already downloaded", map[string]interface{}{"file": name})
			continue
		}

		e.logger.InfoWithFields("Downloading", map[string]interface{}{
			"file":  name,
			"index": i + 1,
			"total": len(filenames),
		})

		final, err := e.Download(ctx, name, st)
		if err != nil {
			return result, err
		}

		switch final {
		case StateSucceeded:
			result.Downloaded = append(result.Downloaded, e.storage.Path(name))
			result.Fetched++
		case StatePermanentlyFailed:
			result.Failed = append(result.Failed, name)
			e.metrics.IncFailed()
			e.logger.WarnWithFields("Giving up", map[string]interface{}{"file": name})
		}
	}

	return result, nil
}

// Download runs the attempt state machine for one file that is not yet on
// disk. It ends in StateSucceeded or StatePermanentlyFailed; a non-nil error
// means ctx ended.
func (e *Engine) Download(ctx context.Context, name string, st *RunState) (State, error) {
	e.transition(name, StateIdle)
	if err := storage.ValidateName(name); err != nil {
		e.logger.WithError(err).WarnWithFields("Rejected document name", map[string]interface{}{"file": name})
		e.transition(name, StatePermanentlyFailed)
		return StatePermanentlyFailed, nil
	}
	target := e.FileURL(name)

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if reason, ok := e.needsRotation(st); ok {
			e.transition(name, StateRotating)
			if err := e.rotate(ctx, reason); err != nil {
				if ctx.Err() != nil {
					return StateIdle, ctx.Err()
				}
				// the streak stays so the next attempt rotates again
				if err := e.backoff(ctx, name, attempt, errs.ErrorTypeTransport, err, st); err != nil {
					return StateIdle, err
				}
				continue
			}
			if reason == session.ReasonAuthStreak {
				st.AuthStreak = 0
			}
		}

		e.transition(name, StateAttempting)
		n, err := e.attempt(ctx, target, name)
		if err == nil {
			return e.succeed(ctx, name, attempt, n, st)
		}
		if ctx.Err() != nil {
			return StateIdle, ctx.Err()
		}

		errorType := errs.TypeOf(err)
		logger.LogDownload(e.logger, name, attempt, 0, err)

		if !errs.IsRetryable(errorType) {
			break
		}
		if errorType == errs.ErrorTypeAuthRequired {
			st.AuthStreak++
		}
		if err := e.backoff(ctx, name, attempt, errorType, err, st); err != nil {
			return StateIdle, err
		}
	}

	e.transition(name, StatePermanentlyFailed)
	return StatePermanentlyFailed, nil
}

func (e *Engine) needsRotation(st *RunState) (session.Reason, bool) {
	if st.AuthStreak >= e.policy.AuthStreakThreshold {
		return session.ReasonAuthStreak, true
	}
	if e.sessions.Current() == nil {
		return session.ReasonRecovery, true
	}
	return "", false
}

func (e *Engine) rotate(ctx context.Context, reason session.Reason) error {
	_, err := e.sessions.Rotate(ctx, reason)
	if err != nil {
		e.logger.WithError(err).WarnWithFields("Session rotation failed", map[string]interface{}{
			"reason": string(reason),
		})
	}
	return err
}

// attempt issues one GET and stores the body on 2xx
func (e *Engine) attempt(ctx context.Context, target, name string) (int64, error) {
	s := e.sessions.Current()
	if s == nil {
		return 0, errs.New(errs.ErrorTypeTransport, 0, "no active session")
	}

	reqCtx := ctx
	if e.policy.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.policy.RequestTimeout)
		defer cancel()
	}

	header := http.Header{}
	if e.referer != "" {
		header.Set("Referer", e.referer)
	}

	start := time.Now()
	resp, err := s.Fetch(reqCtx, target, header)
	if err != nil {
		e.metrics.ObserveRequest(string(errs.ErrorTypeTransport), time.Since(start))
		return 0, err
	}
	defer resp.Body.Close()

	if !errs.IsSuccessStatus(resp.StatusCode) {
		statusErr := errs.FromStatus(resp.StatusCode)
		e.metrics.ObserveRequest(string(statusErr.Type), time.Since(start))
		return 0, statusErr
	}

	n, err := e.storage.Save(&bodyReader{r: resp.Body}, name)
	if errors.Is(err, storage.ErrEmptyDocument) {
		err = errs.New(errs.ErrorTypeHTTP, resp.StatusCode, "empty response body")
	}
	if err != nil {
		e.metrics.ObserveRequest(string(errs.TypeOf(err)), time.Since(start))
		return 0, err
	}
	e.metrics.ObserveRequest("ok", time.Since(start))
	return n, nil
}

func (e *Engine) succeed(ctx context.Context, name string, attempt int, n int64, st *RunState) (State, error) {
	st.SuccessCount++
	st.AuthStreak = 0
	e.metrics.IncDownloaded(n)
	logger.LogDownload(e.logger, name, attempt, n, nil)

	if e.policy.RotateEvery > 0 && st.SuccessCount%e.policy.RotateEvery == 0 {
		e.transition(name, StateRotating)
		// a failed rotation leaves no session; the next file recovers it
		_ = e.rotate(ctx, session.ReasonSuccessInterval)
	}

	if e.policy.Pace != nil {
		// cancellation is picked up before the next file
		_ = e.sleeper.Sleep(ctx, e.policy.Pace.Next())
	}

	e.transition(name, StateSucceeded)
	return StateSucceeded, nil
}

func (e *Engine) backoff(ctx context.Context, name string, attempt int, errorType errs.ErrorType, cause error, st *RunState) error {
	if attempt >= e.policy.MaxAttempts {
		return nil
	}

	strategy := e.policy.ErrorBackoff
	if errorType == errs.ErrorTypeAuthRequired {
		strategy = e.policy.AuthBackoff
	}

	var delay time.Duration
	if strategy != nil {
		delay = strategy.NextDelay(attempt)
	}

	e.transition(name, StateBackingOff)
	e.metrics.IncRetry(string(errorType))
	logger.LogBackoff(e.logger, name, string(errorType), attempt, delay, st.AuthStreak)
	return e.sleeper.Sleep(ctx, delay)
}

func (e *Engine) transition(name string, state State) {
	if e.OnTransition != nil {
		e.OnTransition(name, state)
	}
}

// bodyReader tags read failures as transport errors so they stay retryable
type bodyReader struct {
	r io.Reader
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF {
		return n, errs.Wrap(errs.ErrorTypeTransport, err, "failed to read response body")
	}
	return n, err
}
