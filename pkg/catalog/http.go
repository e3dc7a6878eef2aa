package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/takeoff-cli/internal/resilience"
)

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(c *HTTPClient) { c.apiKey = key }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.http = hc }
}

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(rps float64) HTTPOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) HTTPOption {
	return func(c *HTTPClient) { c.retry = p }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *resilience.Breaker) HTTPOption {
	return func(c *HTTPClient) { c.breaker = b }
}

// WithMaxCandidates caps the number of products requested.
func WithMaxCandidates(n int) HTTPOption {
	return func(c *HTTPClient) { c.limit = n }
}

// WithLogger sets the logger. Defaults to zap.L().
func WithLogger(l *zap.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if l != nil {
			c.log = l
		}
	}
}

// HTTPClient queries a remote catalog service:
//
//	GET {base}/products/search?q=...&category=...&limit=N
//
// which answers {"products": [...]}.
type HTTPClient struct {
	baseURL string
	apiKey  string
	limit   int
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.Policy
	breaker *resilience.Breaker
	log     *zap.Logger
}

var _ Matcher = (*HTTPClient)(nil)

// NewHTTPClient creates a client for baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   10,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		retry:   resilience.DefaultPolicy(),
		breaker: resilience.NewBreaker(5, 30*time.Second),
		log:     zap.L(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.Log == nil {
		c.retry.Log = c.log
	}
	return c
}

type searchResponse struct {
	Products []Product `json:"products"`
}

// Match searches the remote catalog. Transient failures are retried; while
// the breaker is open calls fail fast with resilience.ErrOpen.
func (c *HTTPClient) Match(ctx context.Context, terms []string, category string) ([]Product, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}
	if err := c.breaker.Allow(); err != nil {
		return nil, eris.Wrap(err, "catalog: search")
	}

	q := url.Values{}
	q.Set("q", strings.Join(terms, " "))
	if category != "" {
		q.Set("category", category)
	}
	q.Set("limit", strconv.Itoa(c.limit))
	endpoint := c.baseURL + "/products/search?" + q.Encode()

	products, err := resilience.Retry(ctx, c.retry, "catalog.search", func(ctx context.Context) ([]Product, error) {
		return c.search(ctx, endpoint)
	})
	// Only backend trouble counts against the breaker.
	if resilience.IsTransient(err) {
		c.breaker.Record(err)
	} else {
		c.breaker.Record(nil)
	}
	if err != nil {
		return nil, err
	}
	sortProducts(products)
	return products, nil
}

func (c *HTTPClient) search(ctx context.Context, endpoint string) ([]Product, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "catalog: rate limit wait")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "catalog: read response"), 0)
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("catalog: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "catalog: decode response")
	}
	return out.Products, nil
}
