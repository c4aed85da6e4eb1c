// internal/clients/sales_client.go
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"posnexus/internal/checkout"
)

var ErrSaleRejected = errors.New("sale rejected by sales service")

// SalesClient commits sales to the sales service through a circuit breaker.
type SalesClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewSalesClient(baseURL string, logger *zap.Logger) *SalesClient {
	c := &SalesClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sales-service",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A rejection means the service is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrSaleRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// CommitSale posts the sale. The sale ID is sent as the idempotency key.
func (c *SalesClient) CommitSale(ctx context.Context, sale checkout.Sale) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, sale)
	})
	return err
}

// SyncSale lets the client act as the offline syncer's upstream.
func (c *SalesClient) SyncSale(ctx context.Context, sale checkout.PendingOfflineSale) error {
	return c.CommitSale(ctx, sale.Sale())
}

// BreakerOpen reports whether calls are currently short-circuited.
func (c *SalesClient) BreakerOpen() bool {
	return c.cb.State() == gobreaker.StateOpen
}

func (c *SalesClient) post(ctx context.Context, sale checkout.Sale) error {
	body, err := json.Marshal(sale)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/sales", c.baseURL), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", sale.ID.String())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrSaleRejected, resp.StatusCode)
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
