package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"upmon/internal/models"
)

// defaultRetryBackoff is the pause between failed attempts within one
// evaluation.
const defaultRetryBackoff = 2 * time.Second

// Verdict is the up/down determination plus diagnostic detail produced
// by one evaluation of one monitor.
type Verdict struct {
	StatusCode   *int
	ResponseTime float64 // seconds
	IsUp         bool
	ErrorMessage string
	Warnings     []string
}

// LogMessage renders the verdict's error and warnings into the single
// message stored on the check log. Returns nil when there is nothing to
// record.
func (v Verdict) LogMessage() *string {
	parts := make([]string, 0, 1+len(v.Warnings))
	if v.ErrorMessage != "" {
		parts = append(parts, v.ErrorMessage)
	}
	parts = append(parts, v.Warnings...)
	if len(parts) == 0 {
		return nil
	}
	msg := strings.Join(parts, "; ")
	return &msg
}

// Checker wraps the prober with the per-monitor retry policy and
// aggregates latency and SSL warnings into a verdict.
type Checker struct {
	prober  *Prober
	backoff time.Duration

	// sslExpiry is injectable for tests.
	sslExpiry func(target string, timeout time.Duration) (int, bool)
}

func NewChecker() *Checker {
	return &Checker{
		prober:    NewProber(),
		backoff:   defaultRetryBackoff,
		sslExpiry: SSLExpiryDays,
	}
}

// Evaluate probes the monitor up to its retry budget. A single success
// short-circuits the loop; only failures consume attempts. Latency and
// SSL expiry never flip the verdict, they only append warnings.
func (c *Checker) Evaluate(ctx context.Context, m models.Monitor) Verdict {
	attempts := m.ConsecutiveChecks
	if attempts < 1 {
		attempts = 1
	}
	timeout := time.Duration(m.Timeout) * time.Second

	var v Verdict
	for attempt := 1; attempt <= attempts; attempt++ {
		res := c.prober.Probe(ctx, m.URL, timeout)
		v.ResponseTime = res.Elapsed.Seconds()

		if res.Err != nil {
			v.StatusCode = nil
			v.IsUp = false
			v.ErrorMessage = fmt.Sprintf("request failed: %v", res.Err)
			if res.Fatal {
				slog.Error("non-retriable probe fault", "monitor_id", m.ID, "url", m.URL, "error", res.Err)
				break
			}
		} else {
			code := res.StatusCode
			v.StatusCode = &code

			if reason := checkStatus(m, code); reason != "" {
				v.IsUp = false
				v.ErrorMessage = reason
			} else if reason := checkKeywords(m, res.Body); reason != "" {
				v.IsUp = false
				v.ErrorMessage = reason
			} else {
				v.IsUp = true
				v.ErrorMessage = ""
				break
			}
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				attempt = attempts
			case <-time.After(c.backoff):
			}
		}
	}

	if m.MaxResponseTime > 0 && v.ResponseTime > m.MaxResponseTime {
		v.Warnings = append(v.Warnings,
			fmt.Sprintf("response time %.2fs exceeds limit %.2fs", v.ResponseTime, m.MaxResponseTime))
	}

	if m.CheckSSL && isHTTPS(m.URL) {
		if days, ok := c.sslExpiry(m.URL, timeout); ok && days < m.SSLExpiryThresholdDays {
			v.Warnings = append(v.Warnings,
				fmt.Sprintf("SSL certificate expires in %d days", days))
		}
	}

	return v
}

// checkStatus returns a failure reason when the status code does not
// satisfy the monitor's expectation (exact match if set, otherwise any
// 2xx). Keywords are not evaluated when the status check fails.
func checkStatus(m models.Monitor, code int) string {
	if m.ExpectedStatus != 0 {
		if code != m.ExpectedStatus {
			return fmt.Sprintf("unexpected status %d (want %d)", code, m.ExpectedStatus)
		}
		return ""
	}
	if code < 200 || code >= 300 {
		return fmt.Sprintf("unexpected status %d", code)
	}
	return ""
}

func checkKeywords(m models.Monitor, body string) string {
	if m.KeywordInclude != "" && !strings.Contains(body, m.KeywordInclude) {
		return fmt.Sprintf("keyword %q not found in response", m.KeywordInclude)
	}
	if m.KeywordExclude != "" && strings.Contains(body, m.KeywordExclude) {
		return fmt.Sprintf("forbidden keyword %q present in response", m.KeywordExclude)
	}
	return ""
}
