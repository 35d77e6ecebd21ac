// Package share publishes timesheets to an ephemeral remote store and
// provides a reference implementation of that store.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/timesheet"
)

// DefaultBackoff is the pause before the single retry.
const DefaultBackoff = 500 * time.Millisecond

// Link is a published timesheet.
type Link struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// publishRequest is the POST /timesheets body.
type publishRequest struct {
	TTLSeconds int64              `json:"ttl_seconds"`
	Document   timesheet.Document `json:"document"`
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	// Address is the base URL of the remote store.
	Address string
	// Token is sent as a bearer credential when set.
	Token   string
	TTL     time.Duration
	Timeout time.Duration
	Backoff time.Duration
	Logger  *slog.Logger
}

// Client talks to the remote store. It never touches local state.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	ttl        time.Duration
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a Client. The bearer credential is attached by an
// oauth2 transport built from a static token source.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.Address) == "" {
		return nil, fmt.Errorf("%w: no share address configured (set share.address or GTS_SHARE_ADDRESS)",
			apperr.ErrSharingUnavailable)
	}
	base, err := url.Parse(strings.TrimRight(opts.Address, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid share address %q", apperr.ErrSharingUnavailable, opts.Address)
	}

	httpClient := &http.Client{}
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	httpClient.Timeout = opts.Timeout

	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		base:       base,
		httpClient: httpClient,
		ttl:        opts.TTL,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}, nil
}

// Publish uploads doc and returns its link. A failed attempt (network
// error, timeout, 5xx or unreadable response) is retried once after the
// backoff; after that Publish returns apperr.ErrSharingUnavailable.
func (c *Client) Publish(ctx context.Context, doc timesheet.Document) (Link, error) {
	body, err := json.Marshal(publishRequest{TTLSeconds: int64(c.ttl / time.Second), Document: doc})
	if err != nil {
		return Link{}, fmt.Errorf("encoding timesheet: %w", err)
	}

	var link Link
	err = c.do(ctx, "publish", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, http.StatusCreated, &link)
	if err != nil {
		return Link{}, err
	}
	if link.Token == "" || link.URL == "" {
		return Link{}, fmt.Errorf("%w: response carried no link", apperr.ErrSharingUnavailable)
	}
	c.logger.Debug("published timesheet", "url", link.URL, "expires_at", link.ExpiresAt)
	return link, nil
}

// Fetch reads a published document back. An unknown or expired token
// yields apperr.ErrLinkNotFound.
func (c *Client) Fetch(ctx context.Context, token string) (timesheet.Document, error) {
	var doc timesheet.Document
	err := c.do(ctx, "fetch", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint()+"/"+url.PathEscape(token), nil)
	}, http.StatusOK, &doc)
	return doc, err
}

func (c *Client) endpoint() string {
	return c.base.String() + "/timesheets"
}

// statusError is a non-success HTTP response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("remote store returned %d", e.code)
	}
	return fmt.Sprintf("remote store returned %d: %s", e.code, e.body)
}

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// do performs a request at most twice and decodes a want-status response
// into out.
func (c *Client) do(ctx context.Context, op string, newReq func() (*http.Request, error), want int, out any) error {
	const attempts = 2
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying share request", "op", op, "err", lastErr, "backoff", c.backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		err := c.once(newReq, want, out)
		if err == nil {
			return nil
		}
		lastErr = err

		var se *statusError
		if errors.As(err, &se) {
			if se.code == http.StatusNotFound {
				return apperr.New(op, c.base.Host, apperr.ErrLinkNotFound)
			}
			if !se.retryable() {
				break
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return apperr.New(op, c.base.Host, fmt.Errorf("%w: %w", apperr.ErrSharingUnavailable, lastErr))
}

func (c *Client) once(newReq func() (*http.Request, error), want int, out any) error {
	req, err := newReq()
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if resp.StatusCode != want {
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
