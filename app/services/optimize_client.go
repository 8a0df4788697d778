package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OptimizeClient posts pre-transfer pings
type OptimizeClient struct {
	partnerHTTP
	url   string
	token string
}

// Ping posts payload and returns the raw response body
func (c *OptimizeClient) Ping(ctx context.Context, payload PingPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ping payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create ping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", c.token)

	res, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(res), nil
}
