package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 30 * time.Second

// DefaultUserAgent identifies the scanner to the sites it fetches.
const DefaultUserAgent = "ComplyFlow-A11y-Scanner/1.0"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// FetchError describes a failed page fetch: either a non-200 HTTP status or a
// transport-level failure.
type FetchError struct {
	URL     string
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d error", e.Status)
	}
	return e.Message
}

// TLSPolicy reports whether certificate verification should be enabled for u.
type TLSPolicy func(u *url.URL) bool

// DefaultTLSPolicy verifies certificates for every host except local development hosts.
func DefaultTLSPolicy(u *url.URL) bool {
	return !IsLocalHost(u.Hostname())
}

// IsLocalHost reports whether host is one of the development hosts that skip TLS verification.
func IsLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}

// HostListPolicy builds a policy that disables verification for the given hosts only.
func HostListPolicy(hosts []string) TLSPolicy {
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		set[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return func(u *url.URL) bool {
		return !set[strings.ToLower(u.Hostname())]
	}
}

// Page is a fetched document body and the content type it was served with.
type Page struct {
	URL         string
	Body        string
	ContentType string
}

// Client fetches pages over HTTP.
type Client struct {
	timeout   time.Duration
	userAgent string
	policy    TLSPolicy
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithTLSPolicy overrides the certificate verification policy.
func WithTLSPolicy(p TLSPolicy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithHTTPClient supplies the HTTP client used for every request. The TLS
// policy is not applied to a caller-supplied client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client with a 30s timeout and the default TLS policy.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:   DefaultTimeout,
		userAgent: DefaultUserAgent,
		policy:    DefaultTLSPolicy,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch returns the body of rawURL as text.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	p, err := c.FetchPage(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return p.Body, nil
}

// FetchPage retrieves rawURL. Any status other than 200 is a *FetchError; there is no retry.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Message: fmt.Sprintf("invalid URL: %s", rawURL)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := c.clientFor(u).Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Message: fmt.Sprintf("read body: %v", err)}
	}

	return &Page{
		URL:         rawURL,
		Body:        string(body),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) clientFor(u *url.URL) *http.Client {
	if c.http != nil {
		return c.http
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if u.Scheme == "https" && !c.policy(u) {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // local development hosts only
	}
	return &http.Client{Transport: transport}
}
