package stackexchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/stackqa/internal/logger"
)

const (
	// DefaultBaseURL is the Stack Exchange API root.
	DefaultBaseURL = "https://api.stackexchange.com/2.3"

	// DefaultSite is the site questions are fetched from.
	DefaultSite = "stackoverflow"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries bounds retries of transient failures.
	DefaultMaxRetries = 3

	// DefaultRetryInterval is the initial delay between retries.
	DefaultRetryInterval = time.Second

	// MaxIDsPerRequest is the API's limit on vectorised ids.
	MaxIDsPerRequest = 100

	// MaxPageSize is the API's page size limit.
	MaxPageSize = 100
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Site    string

	// Key is the optional application key that raises the daily quota.
	Key string

	HTTPClient *http.Client
	RateLimit  RateLimitConfig

	// MaxRetries bounds retries of transient failures. Negative disables retries.
	MaxRetries    int
	RetryInterval time.Duration
}

// Client is a minimal Stack Exchange API client.
type Client struct {
	baseURL    string
	site       string
	key        string
	http       *http.Client
	limiter    *RateLimiter
	maxRetries int
	retryEvery time.Duration
}

// NewClient creates a client, applying defaults for empty fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Site == "" {
		cfg.Site = DefaultSite
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	switch {
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		site:       cfg.Site,
		key:        cfg.Key,
		http:       cfg.HTTPClient,
		limiter:    NewRateLimiter(cfg.RateLimit),
		maxRetries: cfg.MaxRetries,
		retryEvery: cfg.RetryInterval,
	}
}

// Question is one item of the /questions response.
type Question struct {
	QuestionID       int64    `json:"question_id"`
	Title            string   `json:"title"`
	Link             string   `json:"link"`
	Tags             []string `json:"tags"`
	Score            int      `json:"score"`
	IsAnswered       bool     `json:"is_answered"`
	AcceptedAnswerID int64    `json:"accepted_answer_id"`
}

// Answer is one item of the /answers response with the withbody filter.
type Answer struct {
	AnswerID   int64  `json:"answer_id"`
	QuestionID int64  `json:"question_id"`
	Body       string `json:"body"`
	Score      int    `json:"score"`
	IsAccepted bool   `json:"is_accepted"`
}

// wrapper is the common response envelope.
type wrapper[T any] struct {
	Items          []T    `json:"items"`
	HasMore        bool   `json:"has_more"`
	QuotaRemaining int    `json:"quota_remaining"`
	Backoff        int    `json:"backoff"`
	ErrorID        int    `json:"error_id"`
	ErrorName      string `json:"error_name"`
	ErrorMessage   string `json:"error_message"`
}

// QuestionPage is one page of questions.
type QuestionPage struct {
	Items          []Question
	HasMore        bool
	QuotaRemaining int
}

// Questions fetches one page of questions tagged tag, highest voted first.
func (c *Client) Questions(ctx context.Context, tag string, page, pageSize int) (*QuestionPage, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, ErrInvalidTag
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	params := url.Values{}
	params.Set("order", "desc")
	params.Set("sort", "votes")
	params.Set("tagged", tag)
	params.Set("page", strconv.Itoa(page))
	params.Set("pagesize", strconv.Itoa(pageSize))

	var resp wrapper[Question]
	if err := fetch(ctx, c, "/questions", params, &resp); err != nil {
		return nil, fmt.Errorf("list questions page %d: %w", page, err)
	}
	return &QuestionPage{Items: resp.Items, HasMore: resp.HasMore, QuotaRemaining: resp.QuotaRemaining}, nil
}

// Answers fetches answers with bodies, batching ids by MaxIDsPerRequest.
// Unknown or deleted ids are silently absent from the result.
func (c *Client) Answers(ctx context.Context, ids []int64) ([]Answer, error) {
	var answers []Answer
	for start := 0; start < len(ids); start += MaxIDsPerRequest {
		end := min(start+MaxIDsPerRequest, len(ids))

		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}

		params := url.Values{}
		params.Set("order", "desc")
		params.Set("sort", "votes")
		params.Set("filter", "withbody")
		params.Set("pagesize", strconv.Itoa(MaxPageSize))

		var resp wrapper[Answer]
		if err := fetch(ctx, c, "/answers/"+strings.Join(parts, ";"), params, &resp); err != nil {
			return answers, fmt.Errorf("fetch answers: %w", err)
		}
		answers = append(answers, resp.Items...)
	}
	return answers, nil
}

// fetch performs a GET with rate limiting and retries, decoding into out.
func fetch[T any](ctx context.Context, c *Client, path string, params url.Values, out *wrapper[T]) error {
	params.Set("site", c.site)
	if c.key != "" {
		params.Set("key", c.key)
	}
	endpoint := c.baseURL + path + "?" + params.Encode()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryEvery
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		*out = wrapper[T]{}
		err := c.do(ctx, endpoint, out)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		logger.Debug("stackexchange: attempt %d for %s failed: %v", attempt, path, err)
		return err
	}, policy)
}

// do performs a single request and applies the response's backoff field.
func (c *Client) do(ctx context.Context, endpoint string, out interface {
	envelope() (backoffSeconds, errorID int, name, message string)
}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Error bodies share the envelope, so decode before checking the status.
	decodeErr := json.Unmarshal(body, out)

	backoffSeconds, errorID, name, message := out.envelope()
	if backoffSeconds > 0 {
		logger.Debug("stackexchange: server requested %ds backoff", backoffSeconds)
		c.limiter.Backoff(time.Duration(backoffSeconds) * time.Second)
	}

	if resp.StatusCode != http.StatusOK || errorID != 0 {
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorID: errorID, Name: name, Message: message}
		if apiErr.throttled() && backoffSeconds == 0 {
			c.limiter.Backoff(throttleWait(message))
		}
		return apiErr
	}
	if decodeErr != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", decodeErr))
	}
	return nil
}

func (w *wrapper[T]) envelope() (backoffSeconds, errorID int, name, message string) {
	return w.Backoff, w.ErrorID, w.ErrorName, w.ErrorMessage
}

// throttleWait extracts "available in N seconds" from a throttle message.
func throttleWait(message string) time.Duration {
	const marker = "available in "
	if i := strings.Index(message, marker); i >= 0 {
		fields := strings.Fields(message[i+len(marker):])
		if len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return DefaultThrottleBackoff
}
