// Package practice provides the Go client for the interview practice
// platform: REST services for interviews and training content, and live
// websocket sessions with reconnect, ordered audio playback, and transcript
// accumulation.
package practice

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
)

const (
	defaultMaxRetries   = 2
	defaultRetryBackoff = 500 * time.Millisecond
)

// Client is the main entry point for the SDK.
type Client struct {
	Interviews *InterviewsService
	Training   *TrainingService
	Live       *LiveService

	baseURL      string
	wsBaseURL    string
	apiKey       string
	httpClient   *http.Client
	logger       *slog.Logger
	maxRetries   int
	retryBackoff time.Duration
}

// NewClient creates a new client. A base URL is required for the REST
// services; the websocket base defaults to the base URL with a ws(s) scheme.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:   newDefaultHTTPClient(),
		logger:       slog.Default(),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Interviews = &InterviewsService{client: c}
	c.Training = &TrainingService{client: c}
	c.Live = &LiveService{client: c}
	return c
}

// newDefaultHTTPClient configures sane transport-level timeouts while keeping
// the overall request lifetime controlled by context deadlines.
func newDefaultHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	return &http.Client{Transport: transport}
}

func (c *Client) apiEndpoint(path string) (string, error) {
	base := strings.TrimSpace(c.baseURL)
	if base == "" {
		return "", core.NewInvalidRequestError("base URL is not configured (set WithBaseURL)")
	}
	return strings.TrimRight(base, "/") + path, nil
}

// webSocketEndpoint resolves a session path against the websocket base URL,
// converting http(s) schemes to ws(s).
func (c *Client) webSocketEndpoint(path string) (string, error) {
	base := strings.TrimSpace(c.wsBaseURL)
	if base == "" {
		base = strings.TrimSpace(c.baseURL)
	}
	if base == "" {
		return "", core.NewInvalidRequestError("websocket base URL is not configured (set WithBaseURL or WithWSBaseURL)")
	}

	u, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", core.NewInvalidRequestError("invalid websocket base URL")
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already websocket scheme.
	default:
		return "", core.NewInvalidRequestError("websocket base URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}

func (c *Client) authHeader() http.Header {
	header := http.Header{}
	if c.apiKey != "" {
		header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return header
}
