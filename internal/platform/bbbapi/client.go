package bbbapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://api.bbb.org"
	MaxPageSize     = 250
	searchPath      = "/v2/orgs/search"
	defaultTimeout  = 30 * time.Second
	defaultRetryGap = time.Second
	defaultMaxWait  = time.Minute
)

type Options struct {
	BaseURL    string
	Token      string
	UserAgent  string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
	// RPS caps outgoing requests per second. Zero disables the limiter.
	RPS float64
	// RetryDelay is the first backoff step; it doubles on every retry.
	RetryDelay time.Duration
	// MaxRetryWait caps a server supplied Retry-After. Longer waits fall
	// back to the regular backoff.
	MaxRetryWait time.Duration
	HTTPClient   *http.Client
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
	pageSize   int
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
	maxWait    time.Duration
}

// PageFunc is called after every page of a search, successful or not.
type PageFunc func(page, pages int)

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryGap
	}

	maxWait := opts.MaxRetryWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), 1)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "bbbpartner-export/1.0"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		token:      opts.Token,
		userAgent:  userAgent,
		pageSize:   pageSize,
		limiter:    limiter,
		maxRetries: max(opts.MaxRetries, 0),
		retryDelay: retryDelay,
		maxWait:    maxWait,
	}
}

// SearchPostalCode returns every organization of one BBB in one zip code.
func (c *Client) SearchPostalCode(ctx context.Context, bbbID, postalCode string) ([]Organization, error) {
	return c.search(ctx, bbbID, postalCode, nil)
}

// SearchRegion returns every organization of one BBB. onPage may be nil.
func (c *Client) SearchRegion(ctx context.Context, bbbID string, onPage PageFunc) ([]Organization, error) {
	return c.search(ctx, bbbID, "", onPage)
}

// search walks all pages. A failed first page fails the search; later page
// failures are joined and returned next to the records that did arrive.
func (c *Client) search(ctx context.Context, bbbID, postalCode string, onPage PageFunc) ([]Organization, error) {
	first, err := c.page(ctx, bbbID, postalCode, 1)
	if err != nil {
		if onPage != nil {
			onPage(1, 1)
		}
		return nil, err
	}

	pages := pageCount(first.TotalResults, c.pageSize)
	if onPage != nil {
		onPage(1, pages)
	}

	orgs := first.SearchResults
	var errs []error
	for p := 2; p <= pages; p++ {
		res, err := c.page(ctx, bbbID, postalCode, p)
		if onPage != nil {
			onPage(p, pages)
		}
		if err != nil {
			if ctx.Err() != nil {
				return orgs, errors.Join(append(errs, err)...)
			}
			log.Printf("bbbapi page failed bbb_id=%s zip=%s page=%d/%d err=%v", bbbID, postalCode, p, pages, err)
			errs = append(errs, err)
			continue
		}
		orgs = append(orgs, res.SearchResults...)
	}
	return orgs, errors.Join(errs...)
}

func (c *Client) page(ctx context.Context, bbbID, postalCode string, page int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("PageSize", strconv.Itoa(c.pageSize))
	q.Set("PageNumber", strconv.Itoa(page))
	q.Set("BbbId", bbbID)
	if postalCode != "" {
		q.Set("PostalCode", postalCode)
	}
	u := c.baseURL + searchPath + "?" + q.Encode()

	body, status, err := c.get(ctx, u)
	if err != nil {
		return nil, &RetrievalError{BBBID: bbbID, PostalCode: postalCode, Page: page, StatusCode: status, Body: truncateBody(body), Err: err}
	}

	var res SearchResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &RetrievalError{BBBID: bbbID, PostalCode: postalCode, Page: page, StatusCode: status, Body: truncateBody(body), Err: fmt.Errorf("decode response: %w", err)}
	}
	return &res, nil
}

// get performs the request with retries on transport errors, 429 and 5xx.
// It returns the last body and status seen so failures can be diagnosed.
func (c *Client) get(ctx context.Context, u string) ([]byte, int, error) {
	var (
		lastErr    error
		lastBody   []byte
		lastStatus int
		wait       time.Duration
	)
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			if wait <= 0 || wait > c.maxWait {
				wait = min(c.backoff(i), c.maxWait)
			}
			log.Printf("bbbapi retry attempt=%d/%d wait=%s err=%v", i, c.maxRetries, wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return lastBody, lastStatus, ctx.Err()
			}
			wait = 0
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return lastBody, lastStatus, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Authorization", c.authorization())
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return lastBody, lastStatus, ctx.Err()
			}
			lastErr = err
			lastBody, lastStatus = nil, 0
			continue
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastBody, lastStatus = body, resp.StatusCode

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			wait = retryAfter(resp.Header.Get("Retry-After"))
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return body, resp.StatusCode, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}

		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}
		return body, resp.StatusCode, nil
	}
	if c.maxRetries == 0 {
		return lastBody, lastStatus, lastErr
	}
	return lastBody, lastStatus, fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) authorization() string {
	if strings.HasPrefix(c.token, "Bearer ") {
		return c.token
	}
	return "Bearer " + c.token
}

// backoff doubles the base delay per attempt and adds up to one base delay of jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay * time.Duration(1<<uint(attempt-1))
	return d + time.Duration(rand.Int64N(int64(c.retryDelay)+1))
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func pageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
