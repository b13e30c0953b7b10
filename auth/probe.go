package auth

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Prober checks whether a site answers before the browser is pointed at it.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber issues a plain GET with retries.
type HTTPProber struct {
	client *retryablehttp.Client
}

// NewHTTPProber returns a prober retrying up to retryMax times, each
// attempt bounded by timeout.
func NewHTTPProber(retryMax int, timeout time.Duration, logger zerolog.Logger) *HTTPProber {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = stdlog.New(io.Discard, "", stdlog.LstdFlags)
	client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		logger.Trace().
			Str(req.Method, req.URL.String()).
			Int("attempt", attempt).
			Msg("probing")
	}
	return &HTTPProber{client: client}
}

// Probe fails when the site cannot be reached or keeps answering 5xx.
func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	return nil
}
