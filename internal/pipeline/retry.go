package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions bounds the retry policy. Zero values take the defaults noted
// on each field.
type RetryOptions struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Default 9.
	MaxRetries int
	// InitialDelay seeds the exponential backoff. Default 100ms.
	InitialDelay time.Duration
	// MaxDelay caps a single backoff interval. Default 10s.
	MaxDelay time.Duration
	// MaxElapsed caps the total time spent across attempts. Default 2m.
	MaxElapsed time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries == 0 {
		o.MaxRetries = 9
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.MaxElapsed <= 0 {
		o.MaxElapsed = 2 * time.Minute
	}
	return o
}

// RetryPolicy retries throttled (429), timed-out (408) and server-error
// responses as well as transport failures, backing off exponentially. A
// service-provided x-ms-retry-after-ms or Retry-After hint overrides the
// computed interval for that attempt.
type RetryPolicy struct {
	opts   RetryOptions
	logger *slog.Logger
}

// NewRetryPolicy applies defaults and builds the policy. A nil logger
// disables retry logging.
func NewRetryPolicy(opts RetryOptions, logger *slog.Logger) *RetryPolicy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RetryPolicy{opts: opts.withDefaults(), logger: logger}
}

func (p *RetryPolicy) Do(req *Request, next Next) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialDelay
	bo.MaxInterval = p.opts.MaxDelay
	bo.MaxElapsedTime = p.opts.MaxElapsed
	bo.Reset()

	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := next(req)
		if !p.shouldRetry(resp, err) || attempt >= p.opts.MaxRetries {
			return resp, err
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			return resp, err
		}
		if resp != nil {
			if hinted, ok := retryAfter(resp); ok {
				delay = hinted
			}
			drain(resp)
		}

		p.logger.LogAttrs(req.Context(), slog.LevelDebug, "retrying request",
			slog.String("operation", req.Operation),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
}

func (p *RetryPolicy) shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		// Cancellation is the caller's decision, not a transient fault.
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	if ms := resp.Header.Get(HeaderRetryAfterMS); ms != "" {
		if v, err := strconv.ParseFloat(ms, 64); err == nil && v >= 0 {
			return time.Duration(v * float64(time.Millisecond)), true
		}
	}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return time.Duration(v) * time.Second, true
		}
	}
	return 0, false
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
