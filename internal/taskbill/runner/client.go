// Package runner implements the HTTP client for the external compute
// service: task submission with a server-sent-event response stream.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/resumehub/billing/internal/config"
	taskdomain "github.com/resumehub/billing/internal/taskbill/domain"
	"go.uber.org/zap"
)

// maxLineSize bounds one SSE line; upstream chunks stay under 1 MiB.
const maxLineSize = 1 << 20

type Client struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	log     *zap.Logger
}

func NewClient(cfg config.Config, log *zap.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	// No overall timeout: the response body is a long-lived stream.
	rc.HTTPClient.Timeout = 0

	return &Client{
		baseURL: cfg.RunnerBaseURL,
		apiKey:  cfg.RunnerAPIKey,
		http:    rc,
		log:     log.Named("taskbill.runner"),
	}
}

func (c *Client) Run(ctx context.Context, req taskdomain.RunRequest, handle func(taskdomain.Record) error) error {
	body, err := json.Marshal(map[string]interface{}{
		"user_id":    req.UserID,
		"capability": req.Capability,
		"input":      req.Input,
	})
	if err != nil {
		return err
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("open task stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("task stream rejected: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		line = bytes.TrimPrefix(line, []byte("data: "))

		record, err := taskdomain.ParseRecord(line)
		if err != nil {
			c.log.Warn("skipping undecodable stream record", zap.Error(err))
			continue
		}
		if err := handle(record); err != nil {
			return err
		}
		if record.Terminal() {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read task stream: %w", err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runner unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
