// Package remote implements a page source backed by an HTTP JSON API.
//
//	GET {base}/count            -> {"count": N}
//	GET {base}/pages/{p}?size=S -> {"rows": [{"index", "name", "width", "height", "is_video"}]}
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/tagview/tagview/internal/config"
	"github.com/tagview/tagview/internal/constants"
	tvhttp "github.com/tagview/tagview/internal/http"
	"github.com/tagview/tagview/internal/logging"
	"github.com/tagview/tagview/internal/pagestore"
	"github.com/tagview/tagview/internal/ratelimit"
	"github.com/tagview/tagview/internal/retry"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 512

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: %s returned %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("remote: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == nethttp.StatusTooManyRequests || e.StatusCode >= 500
}

// retryLogger adapts the engine logger to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Per-request info lines are too noisy for page loads
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Options configures New.
type Options struct {
	BaseURL string

	// HTTPClient is the underlying client (nil = direct connections).
	HTTPClient *nethttp.Client

	// RetryMax and the wait bounds control retries inside one request.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Limiter caps the request rate (nil = unlimited).
	Limiter *ratelimit.RateLimiter

	Logger *logging.Logger
}

// Source implements pagestore.Source over HTTP.
type Source struct {
	base   *url.URL
	client *retryablehttp.Client
	limit  *ratelimit.RateLimiter
	logger *logging.Logger
}

// New creates a Source for opts.BaseURL.
func New(opts Options) (*Source, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", opts.BaseURL)
	}
	logger := logging.OrNop(opts.Logger).Component("remote")

	rc := retryablehttp.NewClient()
	if opts.HTTPClient != nil {
		rc.HTTPClient = opts.HTTPClient
	}
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.Logger = &retryLogger{logger: logger}
	// Hand the last response back so non-2xx statuses become StatusError.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Source{
		base:   base,
		client: rc,
		limit:  opts.Limiter,
		logger: logger,
	}, nil
}

// NewFromConfig creates a Source with the proxy, HTTP/2 and rate settings of cfg.
func NewFromConfig(cfg config.RemoteConfig, logger *logging.Logger) (*Source, error) {
	httpClient, err := tvhttp.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	var limiter *ratelimit.RateLimiter
	if cfg.RatePerSec > 0 {
		limiter = ratelimit.NewRateLimiter(cfg.RatePerSec, cfg.Burst, logger)
	}
	return New(Options{
		BaseURL:      cfg.BaseURL,
		HTTPClient:   httpClient,
		RetryMax:     constants.RemoteRetryMax,
		RetryWaitMin: constants.RemoteRetryWaitMin,
		RetryWaitMax: constants.RemoteRetryWaitMax,
		Limiter:      limiter,
		Logger:       logger,
	})
}

type countResponse struct {
	Count int `json:"count"`
}

type rowJSON struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	IsVideo bool   `json:"is_video"`
}

type pageResponse struct {
	Rows []rowJSON `json:"rows"`
}

// Count implements pagestore.Source.
func (s *Source) Count(ctx context.Context) (int, error) {
	var out countResponse
	if err := s.getJSON(ctx, s.endpoint("count", nil), &out); err != nil {
		return 0, err
	}
	if out.Count < 0 {
		return 0, fmt.Errorf("remote: negative count %d", out.Count)
	}
	return out.Count, nil
}

// LoadPage implements pagestore.Source. Rows are re-indexed from their
// position; the server's index field is only checked.
func (s *Source) LoadPage(ctx context.Context, page, pageSize int) ([]pagestore.Row, error) {
	if page < 0 || pageSize <= 0 {
		return nil, retry.Permanent(fmt.Errorf("invalid page %d (size %d)", page, pageSize))
	}
	q := url.Values{"size": {strconv.Itoa(pageSize)}}
	var out pageResponse
	if err := s.getJSON(ctx, s.endpoint("pages/"+strconv.Itoa(page), q), &out); err != nil {
		return nil, err
	}
	if len(out.Rows) > pageSize {
		out.Rows = out.Rows[:pageSize]
	}

	rows := make([]pagestore.Row, len(out.Rows))
	for i, r := range out.Rows {
		want := page*pageSize + i
		if r.Index != want {
			s.logger.Debug().Int("page", page).Int("got", r.Index).Int("want", want).Msg("row index mismatch")
		}
		rows[i] = pagestore.Row{
			Index:   want,
			Name:    r.Name,
			Width:   r.Width,
			Height:  r.Height,
			IsVideo: r.IsVideo,
		}
	}
	return rows, nil
}

func (s *Source) endpoint(path string, q url.Values) string {
	u := *s.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (s *Source) getJSON(ctx context.Context, target string, out interface{}) error {
	if err := s.limit.Wait(ctx); err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, nethttp.MethodGet, target, nil)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		serr := &StatusError{
			StatusCode: resp.StatusCode,
			URL:        target,
			Body:       strings.TrimSpace(string(body)),
		}
		if serr.Temporary() {
			return serr
		}
		return retry.Permanent(serr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", target, err)
	}
	return nil
}

var _ pagestore.Source = (*Source)(nil)
