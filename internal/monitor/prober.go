package monitor

import (
	"context"
	"crypto/tls"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ProbeResult is the outcome of a single probe attempt. Failures are
// returned as data; nothing escapes this boundary as a raised error.
type ProbeResult struct {
	StatusCode int
	Elapsed    time.Duration
	Body       string
	Err        error
	// Fatal marks errors that retrying cannot fix, such as a request
	// that could not even be constructed.
	Fatal bool
}

// Prober performs one HTTP(S) GET against a monitor's URL. Redirects are
// followed and the body is read to completion so keyword rules can be
// evaluated; the whole exchange is bounded by the timeout.
type Prober struct{}

func NewProber() *Prober { return &Prober{} }

func (p *Prober) Probe(ctx context.Context, target string, timeout time.Duration) ProbeResult {
	start := time.Now()

	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return ProbeResult{Err: err, Fatal: true}
	}

	resp, err := client.Do(req)
	if err != nil {
		return ProbeResult{Elapsed: time.Since(start), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return ProbeResult{StatusCode: resp.StatusCode, Elapsed: elapsed, Err: err}
	}

	return ProbeResult{
		StatusCode: resp.StatusCode,
		Elapsed:    elapsed,
		Body:       string(body),
	}
}

// SSLExpiryDays opens a raw TLS connection independent of the HTTP probe
// and returns the whole days until the peer certificate expires. ok is
// false on any failure; an unknown result is never a failure signal.
func SSLExpiryDays(target string, timeout time.Duration) (days int, ok bool) {
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "https" {
		return 0, false
	}
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "443"
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", net.JoinHostPort(host, port), &tls.Config{ServerName: host})
	if err != nil {
		return 0, false
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return 0, false
	}
	return wholeDaysUntil(certs[0].NotAfter, time.Now()), true
}

// wholeDaysUntil floors, so an expired certificate counts every started
// day as negative rather than truncating toward zero.
func wholeDaysUntil(notAfter, now time.Time) int {
	return int(math.Floor(notAfter.Sub(now).Hours() / 24))
}

// isHTTPS reports whether the target URL uses the https scheme.
func isHTTPS(target string) bool {
	return strings.HasPrefix(strings.ToLower(target), "https://")
}
