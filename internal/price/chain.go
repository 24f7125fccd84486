package price

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolioapi/internal/httpx"

	"github.com/shopspring/decimal"
)

// Attempt records the outcome of one source in a fallback run.
type Attempt struct {
	Source string `json:"source"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	OK     bool   `json:"ok"`
}

// ExhaustedError is returned when every source in the chain failed or
// produced an unusable rate. Attempts holds one entry per source, in
// attempt order.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Source, a.Error))
	}
	return "all rate sources failed: " + strings.Join(parts, "; ")
}

// Chain tries an ordered list of sources until one yields a finite rate
// strictly greater than zero. Each attempt is bounded by Timeout, and the
// timeout cancels the in-flight request, so total latency is bounded by
// len(sources) x Timeout. One attempt per source, no retries.
type Chain struct {
	Sources []Source
	Timeout time.Duration
}

const defaultAttemptTimeout = 3 * time.Second

// Fetch runs the chain. On success the remaining sources are not invoked.
// Attempts are always returned, including the successful one, for debug
// output.
func (c *Chain) Fetch(ctx context.Context) (Quote, []Attempt, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	attempts := make([]Attempt, 0, len(c.Sources))
	for _, src := range c.Sources {
		attempt := c.try(ctx, src, timeout)
		attempts = append(attempts, attempt.Attempt)
		if attempt.Attempt.OK {
			return Quote{Rate: attempt.rate, Source: src.Name(), Timestamp: nowMillis()}, attempts, nil
		}
	}
	return Quote{}, attempts, &ExhaustedError{Attempts: attempts}
}

type tryResult struct {
	Attempt Attempt
	rate    decimal.Decimal
}

func (c *Chain) try(ctx context.Context, src Source, timeout time.Duration) tryResult {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rate, err := src.Rate(attemptCtx)
	if err != nil {
		a := Attempt{Source: src.Name(), Error: err.Error()}
		var se *httpx.StatusError
		if errors.As(err, &se) {
			a.Status = se.Status
		}
		return tryResult{Attempt: a}
	}
	// HTTP 200 with a zero or negative value is a soft failure: record it
	// and let the loop continue.
	if !rate.IsPositive() {
		return tryResult{Attempt: Attempt{
			Source: src.Name(),
			Status: 200,
			Error:  fmt.Sprintf("non-positive rate %s", rate),
		}}
	}
	return tryResult{Attempt: Attempt{Source: src.Name(), Status: 200, OK: true}, rate: rate}
}
