package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"txfanout/internal/config"
	"txfanout/internal/constants"
	"txfanout/internal/logger"
)

// StartResult reports the outcome of an application start request.
type StartResult int

const (
	ResultStarted StartResult = iota
	ResultAlreadyRunning
)

func (r StartResult) String() string {
	if r == ResultAlreadyRunning {
		return "already_running"
	}
	return "started"
}

type startRequest struct {
	StartingPosition string `json:"starting_position"`
}

// Client starts the external analytics application over its management API.
type Client struct {
	cfg    config.AnalyticsConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.AnalyticsConfig, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

// StartApplication asks the analytics service to start the configured
// application. An already-running application is a distinct outcome rather
// than an error, so callers can skip their settle wait.
func (c *Client) StartApplication(ctx context.Context) (StartResult, error) {
	position := c.cfg.StartingPosition
	if position == "" {
		position = constants.StartingPositionNow
	}

	body, err := json.Marshal(startRequest{StartingPosition: position})
	if err != nil {
		return ResultStarted, fmt.Errorf("failed to encode start request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/applications/%s/start",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.Application)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ResultStarted, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return ResultStarted, fmt.Errorf("analytics api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ResultAlreadyRunning, nil
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return ResultStarted, fmt.Errorf("analytics api returned status %d: %s",
			resp.StatusCode, readErrorBody(resp.Body))
	}

	return ResultStarted, nil
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, constants.DefaultTruncateLen))
	if err != nil {
		return ""
	}
	return string(data)
}
