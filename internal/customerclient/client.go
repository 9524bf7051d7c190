// Package customerclient talks to the customer service over HTTP on behalf of order reconciliation.
package customerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/circuitbreaker"
	"github.com/vasiliy-maslov/ecommerce-microservices/internal/customer"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
	// LookupRetries is the number of extra attempts for a lookup after a transport error or 5xx.
	LookupRetries int
	RetryBackoff  time.Duration
	Breaker       *circuitbreaker.CircuitBreaker
	HTTPClient    *http.Client
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	lookup     *retrier.Retrier
}

func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: "customer-service", IsFailure: IsBreakerFailure})
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		breaker:    breaker,
		lookup:     retrier.New(linearBackoff(max(cfg.LookupRetries, 0), backoff), lookupClassifier{}),
	}
}

// linearBackoff waits step, 2*step, ... between attempts.
func linearBackoff(retries int, step time.Duration) []time.Duration {
	waits := make([]time.Duration, retries)
	for i := range waits {
		waits[i] = time.Duration(i+1) * step
	}
	return waits
}

// lookupClassifier retries transport failures and 5xx answers.
type lookupClassifier struct{}

func (lookupClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case errors.Is(err, customer.ErrNotFound):
		return retrier.Fail
	case retryable(err):
		return retrier.Retry
	default:
		return retrier.Fail
	}
}

// IsBreakerFailure reports whether err means the directory is unhealthy.
// Clean misses and conflicts are answers, not failures.
func IsBreakerFailure(err error) bool {
	return err != nil && !errors.Is(err, customer.ErrNotFound) && !errors.Is(err, customer.ErrEmailExists)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("customer service returned status %d: %s", e.code, e.body)
}

// FindByEmail returns customer.ErrNotFound on a 404 and customer.ErrDirectoryUnavailable
// wrapping the cause for anything else that is not a 200.
func (c *Client) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	var (
		found    *customer.Customer
		attempts int
	)
	err := c.lookup.RunCtx(ctx, func(ctx context.Context) error {
		if attempts > 0 {
			log.Debug().Int("attempt", attempts).Str("email", email).Msg("customerclient: retrying customer lookup")
		}
		attempts++
		return c.breaker.Execute(func() error {
			var err error
			found, err = c.getByEmail(ctx, email)
			return err
		})
	})
	if err == nil {
		return found, nil
	}
	if errors.Is(err, customer.ErrNotFound) {
		return nil, customer.ErrNotFound
	}

	return nil, fmt.Errorf("customerclient: lookup by email: %w: %w", customer.ErrDirectoryUnavailable, err)
}

// Create posts the draft. A 409 means another caller created the customer first;
// the existing record is looked up and returned instead.
func (c *Client) Create(ctx context.Context, draft customer.Draft) (*customer.Customer, error) {
	var created *customer.Customer
	err := c.breaker.Execute(func() error {
		var err error
		created, err = c.post(ctx, draft)
		return err
	})
	if err == nil {
		return created, nil
	}

	if errors.Is(err, customer.ErrEmailExists) {
		log.Info().Str("email", draft.Email).Msg("customerclient: customer already exists, resolving by email")
		existing, lookupErr := c.FindByEmail(ctx, draft.Email)
		if lookupErr != nil {
			return nil, fmt.Errorf("customerclient: resolve existing customer: %w: %w", customer.ErrDirectoryUnavailable, lookupErr)
		}
		return existing, nil
	}

	return nil, fmt.Errorf("customerclient: create customer: %w: %w", customer.ErrDirectoryUnavailable, err)
}

func (c *Client) getByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/customers/email/"+url.PathEscape(email), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to customer service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeCustomer(resp.Body)
	case http.StatusNotFound:
		return nil, customer.ErrNotFound
	default:
		return nil, newStatusError(resp)
	}
}

func (c *Client) post(ctx context.Context, draft customer.Draft) (*customer.Customer, error) {
	jsonData, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/customers", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to customer service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		created, err := decodeCustomer(resp.Body)
		if err != nil {
			return nil, err
		}
		log.Info().Stringer("customer_id", created.ID).Msg("customerclient: customer created")
		return created, nil
	case http.StatusConflict:
		return nil, customer.ErrEmailExists
	default:
		return nil, newStatusError(resp)
	}
}

func decodeCustomer(body io.Reader) (*customer.Customer, error) {
	var c customer.Customer
	if err := json.NewDecoder(body).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode customer service response: %w", err)
	}
	return &c, nil
}

func newStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
}

// retryable is true for transport failures and 5xx answers.
func retryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}
	return true
}
