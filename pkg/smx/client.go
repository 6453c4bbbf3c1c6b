package smx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/avative-pat/FiberMonitorMap/pkg/config"
	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

// AlarmSource is the fault source contract consumed by the poll scheduler.
type AlarmSource interface {
	FetchActiveAlarms(ctx context.Context) ([]models.RawAlarm, error)
}

// Client fetches the standing alarm list from the Calix SMx REST API.
type Client struct {
	url        string
	authHeader string
	pageSize   int
	httpClient *http.Client
}

var _ AlarmSource = (*Client)(nil)

// NewClient creates a new SMx client
func NewClient(cfg *config.SMx) *Client {
	return &Client{
		url:        cfg.URL,
		authHeader: cfg.AuthHeader,
		pageSize:   cfg.PageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
}

// FetchActiveAlarms retrieves all standing alarms from SMx. A failure here
// is never fatal to the process: the caller aborts the current poll cycle
// and retries on the next tick.
func (c *Client) FetchActiveAlarms(ctx context.Context) ([]models.RawAlarm, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build smx request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.authHeader)

	// SMx pages its alarm list; request one large page so a single poll
	// sees every standing alarm.
	q := req.URL.Query()
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("offset", "0")
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	q.Set("page", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smx request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var alarms []models.RawAlarm
	if err := json.NewDecoder(resp.Body).Decode(&alarms); err != nil {
		return nil, fmt.Errorf("%w: %v", errDecodeResponse, err)
	}

	logrus.Debugf("Fetched %d alarms from SMx", len(alarms))

	return alarms, nil
}
