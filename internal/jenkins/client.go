package jenkins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/http/httpproxy"

	"github.com/nmslite/check-jenkins-queue/internal/config"
	"github.com/nmslite/check-jenkins-queue/internal/models"
)

// maxBodySize caps the response read; the tree-filtered document is tiny
const maxBodySize = 1 << 20

// Client fetches the overall load statistics of one Jenkins server
type Client struct {
	httpClient *http.Client
	url        string
	username   string
	password   string
	timeout    time.Duration
	requestID  string
	logger     *slog.Logger
}

// NewClient creates a client for cfg.BaseURL
// - If a proxy URL is configured, every request goes through it
// - Otherwise HTTP_PROXY/HTTPS_PROXY/NO_PROXY apply, unless NoProxy is set
// - Basic auth is sent only when both user and password are present
func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	proxy, err := proxyFunc(cfg)
	if err != nil {
		return nil, err
	}

	transport := cleanhttp.DefaultTransport()
	transport.Proxy = proxy

	requestID := uuid.NewString()
	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.GetTimeout(),
		},
		url:       cfg.BaseURL + LoadPath + "?tree=" + LoadTree,
		timeout:   cfg.GetTimeout(),
		requestID: requestID,
		logger:    logger.With("component", "jenkins_client", "request_id", requestID),
	}
	if cfg.HasCredentials() {
		c.username = cfg.Username
		c.password = cfg.Password
	}

	return c, nil
}

// proxyFunc selects the transport proxy for cfg
func proxyFunc(cfg config.Config) (func(*http.Request) (*url.URL, error), error) {
	switch {
	case cfg.ProxyURL != "":
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		return http.ProxyURL(proxyURL), nil
	case cfg.NoProxy:
		return nil, nil
	default:
		fromEnv := httpproxy.FromEnvironment().ProxyFunc()
		return func(req *http.Request) (*url.URL, error) {
			return fromEnv(req.URL)
		}, nil
	}
}

// LoadURL returns the full URL requested by FetchLoad
func (c *Client) LoadURL() string {
	return c.url
}

// FetchLoad issues a single GET for the load document and extracts the
// latest queue length and busy executor count. No retry is attempted.
func (c *Client) FetchLoad(ctx context.Context) (models.Metrics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return models.Metrics{}, &FetchError{URL: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.Program+"/"+config.Version)
	req.Header.Set("X-Request-ID", c.requestID)
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	c.logger.Debug(fmt.Sprintf("GET %s ...", c.url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Metrics{}, &FetchError{URL: c.url, Err: transportCause(err, c.timeout)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Metrics{}, &FetchError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return models.Metrics{}, &FetchError{URL: c.url, Err: transportCause(err, c.timeout)}
	}
	if len(body) > maxBodySize {
		return models.Metrics{}, &ParseError{URL: c.url, Err: errTooLarge}
	}

	metrics, err := decodeLoad(c.url, body)
	if err != nil {
		return models.Metrics{}, err
	}

	c.logger.Debug("parsed load statistics",
		"queue_length", metrics.QueueLength,
		"busy_executors", metrics.BusyExecutors,
	)

	return metrics, nil
}

// Close releases idle connections held by the transport
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// transportCause strips the *url.Error wrapper, which repeats the URL,
// and names timeouts explicitly
func transportCause(err error, timeout time.Duration) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return fmt.Errorf("timed out after %v: %w", timeout, urlErr.Err)
		}
		return urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %v: %w", timeout, err)
	}
	return err
}
