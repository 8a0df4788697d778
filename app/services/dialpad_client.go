package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DialpadClient talks to the Dialpad REST API
type DialpadClient struct {
	partnerHTTP
	baseURL  string
	officeID string
	apiKey   string
}

func (c *DialpadClient) get(ctx context.Context, path string, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create dialpad request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode dialpad response: %w", err)
	}
	return nil
}

type dialpadState struct {
	State string `json:"state"`
}

type dialpadNumber struct {
	Number     string `json:"number"`
	OfficeID   any    `json:"office_id"`
	Status     string `json:"status"`
	TargetID   any    `json:"target_id"`
	TargetType string `json:"target_type"`
}

// Test fetches the configured office
func (c *DialpadClient) Test(ctx context.Context) error {
	return c.get(ctx, "/offices/"+url.PathEscape(c.officeID), nil)
}

// ListNumbers returns the numbers assigned to the configured office
func (c *DialpadClient) ListNumbers(ctx context.Context) ([]string, error) {
	var res struct {
		Items []dialpadNumber `json:"items"`
	}
	if err := c.get(ctx, "/numbers", &res); err != nil {
		return nil, err
	}
	numbers := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if fmt.Sprint(item.OfficeID) == c.officeID {
			numbers = append(numbers, item.Number)
		}
	}
	return numbers, nil
}

// IsNumberAvailable resolves the number's target and reports whether it is active
func (c *DialpadClient) IsNumberAvailable(ctx context.Context, phone string) (bool, error) {
	var detail dialpadNumber
	if err := c.get(ctx, "/numbers/"+url.PathEscape(phone), &detail); err != nil {
		return false, err
	}

	var path string
	switch {
	case detail.Status == "available":
		return true, nil
	case detail.Status == "office":
		path = "/offices/"
	case detail.Status == "department":
		path = "/departments/"
	case detail.TargetType == "callcenter":
		path = "/callcenters/"
	case detail.TargetType == "user":
		path = "/users/"
	default:
		return false, nil
	}

	var target dialpadState
	if err := c.get(ctx, path+url.PathEscape(fmt.Sprint(detail.TargetID)), &target); err != nil {
		return false, err
	}
	return target.State == "active", nil
}

// AgentStatus reports whether the Dialpad user is active
func (c *DialpadClient) AgentStatus(ctx context.Context, agentID string) (bool, error) {
	var user dialpadState
	if err := c.get(ctx, "/users/"+url.PathEscape(agentID), &user); err != nil {
		return false, err
	}
	return user.State == "active", nil
}

func (c *DialpadClient) AddLead(ctx context.Context, lead LeadPayload) error {
	return ErrNotSupported
}
