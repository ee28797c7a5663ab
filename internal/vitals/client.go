package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/models"
)

// ErrUnavailable wraps every failure of the vitals endpoint.
var ErrUnavailable = errors.New("vitals source unavailable")

// Client fetches vitals rows from the upstream endpoint. It never retries;
// the next poll tick is the retry.
type Client struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewClient creates a vitals client for a full endpoint URL.
func NewClient(url string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	return &Client{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Fetch returns the current rows. Transport errors, non-200 responses and
// undecodable bodies all fail the whole call.
func (c *Client) Fetch(ctx context.Context) ([]models.VitalsRow, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		Get(c.url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode() != 200 {
		c.logger.Warn("Vitals endpoint returned non-200",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("url", c.url),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	var rows []models.VitalsRow
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("%w: decode rows: %v", ErrUnavailable, err)
	}

	c.logger.Debug("Fetched vitals rows", zap.Int("row_count", len(rows)))
	return rows, nil
}
