// Package cardapi is a client for the remote card collection endpoint.
package cardapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/cardboard/internal/models"
)

const maxBodySize = 1 << 20 // 1 MB

// Client talks to a remote collection of cards at {base}/cards.
type Client struct {
	base      string
	http      *http.Client
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the collection rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("cardapi: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("cardapi: unsupported scheme: %q (only http/https)", u.Scheme)
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CollectionURL returns the URL of the card collection.
func (c *Client) CollectionURL() string {
	return c.base + "/cards"
}

// ListCards fetches the full collection in server order.
func (c *Client) ListCards(ctx context.Context) ([]models.Card, error) {
	var cards []models.Card
	if err := c.do(ctx, http.MethodGet, c.CollectionURL(), nil, &cards); err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return cards, nil
}

// CreateCard asks the remote service to create a card. An empty draft sends
// no body and the server fills in every field.
func (c *Client) CreateCard(ctx context.Context, draft *models.CardDraft) (*models.Card, error) {
	var body any
	if !draft.IsEmpty() {
		body = draft
	}
	var card models.Card
	if err := c.do(ctx, http.MethodPost, c.CollectionURL(), body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// DeleteCard deletes the card with the given id. Any response body is ignored.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.CollectionURL()+"/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, rawURL string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &Error{Method: method, URL: rawURL, Err: err}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return &Error{Method: method, URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Method: method, URL: rawURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: data}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Method: method, URL: rawURL, StatusCode: resp.StatusCode, Body: data, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
