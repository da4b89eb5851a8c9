package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/storyproof/lead-relay/internal/config"
)

const (
	defaultTokenBaseURL = "https://login.microsoftonline.com"
	defaultAPIBaseURL   = "https://graph.microsoft.com"
	tokenScope          = "https://graph.microsoft.com/.default"

	// rawBodyLimit caps how much of an upstream response body is retained
	// for diagnostics and error messages.
	rawBodyLimit = 512
)

// Sentinel errors distinguishing which upstream call failed. Both are fatal
// for the invocation; a token failure means sendMail was never attempted.
var (
	ErrTokenRequest = errors.New("token request failed")
	ErrSendRequest  = errors.New("send request failed")
)

// Option customises client behaviour.
type Option func(*Client)

// WithHTTPClient swaps the HTTP client used for both outbound calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTokenBaseURL overrides the identity platform base URL.
func WithTokenBaseURL(base string) Option {
	return func(c *Client) {
		if strings.TrimSpace(base) != "" {
			c.tokenBase = strings.TrimRight(base, "/")
		}
	}
}

// WithAPIBaseURL overrides the Graph API base URL.
func WithAPIBaseURL(base string) Option {
	return func(c *Client) {
		if strings.TrimSpace(base) != "" {
			c.apiBase = strings.TrimRight(base, "/")
		}
	}
}

// WithClock replaces the clock used for response timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// Client implements Provider against the Microsoft Graph mail API. Each Send
// performs a fresh client-credentials token exchange followed by a sendMail
// call; tokens are never cached across invocations.
type Client struct {
	logger       zerolog.Logger
	tenantID     string
	clientID     string
	clientSecret string
	mailbox      string
	tokenBase    string
	apiBase      string
	httpClient   *http.Client
	now          func() time.Time
}

// NewClient constructs a Graph mail client sending from the given mailbox.
func NewClient(cfg config.GraphConfig, mailbox string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, errors.New("graph client: tenant id is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("graph client: client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("graph client: client secret is required")
	}
	if strings.TrimSpace(mailbox) == "" {
		return nil, errors.New("graph client: sender mailbox is required")
	}

	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	c := &Client{
		logger:       logger,
		tenantID:     strings.TrimSpace(cfg.TenantID),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		mailbox:      strings.TrimSpace(mailbox),
		tokenBase:    defaultTokenBaseURL,
		apiBase:      defaultAPIBaseURL,
		httpClient:   http.DefaultClient,
		now:          time.Now,
	}

	if strings.TrimSpace(cfg.TokenBaseURL) != "" {
		c.tokenBase = strings.TrimRight(cfg.TokenBaseURL, "/")
	}
	if strings.TrimSpace(cfg.APIBaseURL) != "" {
		c.apiBase = strings.TrimRight(cfg.APIBaseURL, "/")
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Send acquires a bearer token and dispatches the message through the Graph
// sendMail endpoint. A token failure aborts before sendMail is attempted.
func (c *Client) Send(ctx context.Context, msg *Message) (*RawResponse, error) {
	if msg == nil {
		return nil, errors.New("graph client: message is required")
	}

	token, err := c.acquireToken(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(sendMailRequest{Message: *msg, SaveToSentItems: true})
	if err != nil {
		return nil, fmt.Errorf("graph client: marshal send payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", c.apiBase, url.PathEscape(c.mailbox))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("graph client: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendRequest, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	raw := &RawResponse{
		Code:      resp.StatusCode,
		Body:      excerpt(body),
		Timestamp: c.now(),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, fmt.Errorf("%w: status %d: %s", ErrSendRequest, resp.StatusCode, raw.Body)
	}

	c.logger.Debug().
		Int("upstream_status", resp.StatusCode).
		Str("mailbox", c.mailbox).
		Msg("graph client: message accepted")

	return raw, nil
}

func (c *Client) acquireToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	endpoint := fmt.Sprintf("%s/%s/oauth2/v2.0/token", c.tokenBase, url.PathEscape(c.tenantID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("graph client: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTokenRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrTokenRequest, resp.StatusCode, excerpt(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTokenRequest, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response missing access_token", ErrTokenRequest)
	}

	// Log the token length only, never the token itself.
	c.logger.Debug().Int("token_length", len(tr.AccessToken)).Msg("graph client: access token acquired")

	return tr.AccessToken, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if utf8.RuneCountInString(s) <= rawBodyLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:rawBodyLimit])
}
