package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/sells-group/lead-scout/internal/resilience"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent           string
	Timeout             time.Duration
	Retry               resilience.RetryConfig
	MaxBodyBytes        int64
	AllowedContentTypes []string

	// AllowInsecureTLS enables a single retry without certificate
	// verification after a TLS failure. Off unless configured.
	AllowInsecureTLS bool
}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client         *http.Client
	h1Client       *http.Client
	insecureClient *http.Client
	opts           HTTPOptions
	limiter        *RateLimiter
	penalties      *resilience.HostPenaltyTracker
}

// NewHTTPFetcher creates a new HTTPFetcher. limiter and penalties are shared
// with the rest of the run.
func NewHTTPFetcher(opts HTTPOptions, limiter *RateLimiter, penalties *resilience.HostPenaltyTracker) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}
	if len(opts.AllowedContentTypes) == 0 {
		opts.AllowedContentTypes = []string{"text/html", "application/xhtml+xml", "text/plain"}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "lead-scout/1.0"
	}
	if limiter == nil {
		limiter = NewRateLimiter(0, 0)
	}
	if penalties == nil {
		penalties = resilience.NewHostPenaltyTracker(resilience.DefaultPenaltyConfig())
	}

	f := &HTTPFetcher{
		client:    &http.Client{Transport: newTransport(false, false)},
		h1Client:  &http.Client{Transport: newTransport(true, false)},
		opts:      opts,
		limiter:   limiter,
		penalties: penalties,
	}
	if opts.AllowInsecureTLS {
		f.insecureClient = &http.Client{Transport: newTransport(false, true)}
	}
	return f
}

func newTransport(forceHTTP1, insecure bool) *http.Transport {
	t := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   !forceHTTP1,
	}
	if forceHTTP1 {
		// A non-nil empty map disables HTTP/2 negotiation.
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	}
	if insecure {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return t
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, eris.Errorf("fetcher: invalid url %q", rawURL)
	}
	host := resilience.HostKey(u.Host)

	if !f.penalties.IsAllowed(host) {
		return nil, &resilience.PenalizedError{Host: host}
	}

	release, err := f.limiter.Acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	defer release()

	retry := f.opts.Retry
	retry.OnRetry = resilience.RetryLogger("fetcher", rawURL)

	start := time.Now()
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*Response, error) {
		return f.attempt(ctx, rawURL, host)
	})
	if err != nil {
		if resilience.IsRateLimit(err) || resilience.IsNetwork(err) {
			f.penalties.Penalize(host)
		}
		return nil, err
	}

	f.penalties.Succeed(host)
	resp.Elapsed = time.Since(start)
	return resp, nil
}

// attempt performs a single GET including the TLS and HTTP/1.1 fallbacks.
func (f *HTTPFetcher) attempt(ctx context.Context, rawURL, host string) (*Response, error) {
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("host", host), zap.String("url", rawURL))

	resp, err := f.do(ctx, f.client, rawURL)
	if err != nil {
		switch {
		case isTLSError(err):
			if f.insecureClient == nil {
				return nil, eris.Wrapf(err, "fetcher: tls verification failed for %s", rawURL)
			}
			log.Warn("tls verification failed, retrying without verification", zap.Error(err))
			resp, err = f.do(ctx, f.insecureClient, rawURL)
		case isProtocolError(err):
			log.Info("protocol error, retrying with http/1.1", zap.Error(err))
			resp, err = f.do(ctx, f.h1Client, rawURL)
		}
	}
	if err != nil {
		// Per-attempt timeouts count as network errors; a cancelled run does not.
		if ctx.Err() == nil && resilience.IsTransient(err) {
			return nil, &resilience.NetworkError{URL: rawURL, Err: err}
		}
		if isTyped(err) {
			return nil, err
		}
		return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	return resp, nil
}

// do issues the request with a per-attempt timeout and gates the response
// before buffering the body.
func (f *HTTPFetcher) do(ctx context.Context, client *http.Client, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,text/plain;q=0.8")
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsRateLimitStatus(resp.StatusCode) {
		return nil, resilience.NewRateLimitError(req.URL.Host, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &resilience.HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !f.allowedContentType(contentType) {
		return nil, fmt.Errorf("fetcher: %w: content type %q from %s", resilience.ErrContent, contentType, rawURL)
	}
	if resp.ContentLength > f.opts.MaxBodyBytes {
		return nil, fmt.Errorf("fetcher: %w: content length %d exceeds %d", resilience.ErrContent, resp.ContentLength, f.opts.MaxBodyBytes)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > f.opts.MaxBodyBytes {
		return nil, fmt.Errorf("fetcher: %w: body exceeds %d bytes", resilience.ErrContent, f.opts.MaxBodyBytes)
	}

	body, err := decodeUTF8(raw, contentType)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode body")
	}

	return &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Protocol:    resp.Proto,
		Body:        body,
	}, nil
}

func (f *HTTPFetcher) allowedContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(mediaType)
	for _, allowed := range f.opts.AllowedContentTypes {
		if strings.HasPrefix(mediaType, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

func decodeUTF8(raw []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		// Unknown charset label: keep the raw bytes.
		return raw, nil
	}
	return io.ReadAll(r)
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostnameErr      x509.HostnameError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &invalidCert) ||
		errors.As(err, &hostnameErr) || errors.As(err, &verifyErr) || errors.As(err, &recordErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "x509:") || strings.Contains(msg, "tls: failed to verify")
}

func isProtocolError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"http2:", "stream error", "protocol_error", "malformed http response", "unexpected alpn"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// isTyped reports whether err already carries a resilience error type or a
// content rejection, which must reach the retry loop unchanged.
func isTyped(err error) bool {
	var hs *resilience.HTTPStatusError
	return resilience.IsRateLimit(err) || errors.As(err, &hs) || errors.Is(err, resilience.ErrContent)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
