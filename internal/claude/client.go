// Package claude talks to the Anthropic Messages API to categorize shopping
// items and extract ingredients from recipe photos.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/text/cases"

	"github.com/kroslabs/quickyshoppy/internal/model"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-sonnet-4-5-20250929"

	apiVersion          = "2023-06-01"
	categorizeMaxTokens = 50
	extractMaxTokens    = 1024
	ioTimeout           = 30 * time.Second
)

// Config holds classification client settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration // overall per-request limit

	// CacheSize bounds the categorization cache; zero disables it.
	CacheSize int
	CacheTTL  time.Duration
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("claude API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("claude API returned status %d: %s: %s", e.StatusCode, e.Type, e.Message)
}

// Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *expirable.LRU[string, model.Category]
	fold       cases.Caser
}

type Option func(*Client)

// WithHTTPClient replaces the default transport, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: ioTimeout}).DialContext,
				TLSHandshakeTimeout:   ioTimeout,
				ResponseHeaderTimeout: ioTimeout,
			},
		},
		fold: cases.Fold(),
	}
	if cfg.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, model.Category](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize asks the model for the category of an item name. Unrecognised
// answers resolve to Uncategorised; only transport and API failures error.
func (c *Client) Categorize(ctx context.Context, apiKey, name string) (model.Category, error) {
	key := c.cacheKey(name)
	if c.cache != nil {
		if cat, ok := c.cache.Get(key); ok {
			return cat, nil
		}
	}

	req := messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: categorizeMaxTokens,
		Messages: []message{{
			Role:    "user",
			Content: categorizePrompt(name),
		}},
	}

	resp, err := c.send(ctx, apiKey, req)
	if err != nil {
		return model.Uncategorised, err
	}

	cat := ParseCategory(resp.text())
	if c.cache != nil && cat != model.Uncategorised {
		c.cache.Add(key, cat)
	}
	return cat, nil
}

// ExtractIngredients sends a recipe photo and parses the ingredient list from
// the reply.
func (c *Client) ExtractIngredients(ctx context.Context, apiKey string, image []byte) ([]model.Ingredient, error) {
	req := messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: extractMaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: MediaType(image),
						Data:      encodeImage(image),
					},
				},
				{Type: "text", Text: extractPrompt},
			},
		}},
	}

	resp, err := c.send(ctx, apiKey, req)
	if err != nil {
		return nil, err
	}
	return ParseIngredients(resp.text()), nil
}

// CachedCategories reports the number of cached categorization results.
func (c *Client) CachedCategories() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func (c *Client) cacheKey(name string) string {
	return c.fold.String(strings.TrimSpace(name))
}

func (c *Client) send(ctx context.Context, apiKey string, mr messageRequest) (*messageResponse, error) {
	body, err := json.Marshal(mr)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claude request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var er errorResponse
		if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil && json.Unmarshal(data, &er) == nil {
			apiErr.Type = er.Error.Type
			apiErr.Message = er.Error.Message
		}
		return nil, apiErr
	}

	var out messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode claude response: %w", err)
	}
	return &out, nil
}
