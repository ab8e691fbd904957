package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
)

// maxBodySize ограничивает размер ответа провайдера.
const maxBodySize = 32 << 20

// StatusError провайдер ответил не 2xx.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.Endpoint)
}

// Client HTTP-клиент для JSON API провайдеров с ограниченным временем на вызов
// и необязательными повторами.
type Client struct {
	http       *http.Client
	retries    int
	retryDelay time.Duration
}

// New создаёт клиент. retries=0 означает одну попытку без повторов.
func New(timeout time.Duration, retries int, retryDelay time.Duration) *Client {
	return &Client{
		http:       &http.Client{Timeout: timeout},
		retries:    retries,
		retryDelay: retryDelay,
	}
}

// Get выполняет GET endpoint?query и возвращает тело ответа.
// Повторяются только сетевые ошибки и ответы 5xx. Query (с ключами API)
// не попадает ни в логи, ни в текст ошибок.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = query.Encode()

	log := logger.Log.WithField("endpoint", endpoint)

	var lastErr error
	for attempt := 1; attempt <= c.retries+1; attempt++ {
		body, retry, err := c.do(ctx, u.String(), endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !retry || attempt > c.retries {
			break
		}

		log.WithError(err).WithField("attempt", attempt).Warn("Provider request failed, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, rawURL, endpoint string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = endpoint
		}
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode >= 500, &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	return body, false, nil
}
