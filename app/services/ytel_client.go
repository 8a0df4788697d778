package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ytelAPIUser is the fixed non-agent API user of Ytel accounts
const ytelAPIUser = "101"

// YtelClient talks to the Ytel non-agent API
type YtelClient struct {
	partnerHTTP
	baseURL  string
	password string
}

func (c *YtelClient) call(ctx context.Context, function string, params url.Values) (string, error) {
	q := url.Values{}
	q.Set("source", "test")
	q.Set("user", ytelAPIUser)
	q.Set("pass", c.password)
	q.Set("function", function)
	for k, vs := range params {
		q[k] = vs
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/x5/api/non_agent.php?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create ytel request: %w", err)
	}
	req.Header.Set("Content-Type", "application/text")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Test lists voicemail boxes to verify the credentials
func (c *YtelClient) Test(ctx context.Context) error {
	res, err := c.call(ctx, "vm_list", url.Values{
		"format":   {"selectframe"},
		"comments": {"fieldname"},
		"stage":    {"date"},
	})
	if err != nil {
		return err
	}
	if strings.Contains(res, "ERROR") {
		return fmt.Errorf("ytel rejected credentials: %s", strings.TrimSpace(res))
	}
	return nil
}

func (c *YtelClient) ListNumbers(ctx context.Context) ([]string, error) {
	return nil, ErrNotSupported
}

func (c *YtelClient) IsNumberAvailable(ctx context.Context, phone string) (bool, error) {
	return false, ErrNotSupported
}

// AgentStatus reports whether the agent is READY or CLOSER
func (c *YtelClient) AgentStatus(ctx context.Context, agentID string) (bool, error) {
	res, err := c.call(ctx, "agent_status", url.Values{
		"agent_user": {agentID},
		"stage":      {"csv"},
		"header":     {"YES"},
	})
	if err != nil {
		return false, err
	}
	if strings.Contains(res, "ERROR") {
		return false, nil
	}

	status, err := firstCSVField(res, "status")
	if err != nil {
		return false, err
	}
	return status == "CLOSER" || status == "READY", nil
}

// AddLead pushes the lead into the list identified by lead.ListID
func (c *YtelClient) AddLead(ctx context.Context, lead LeadPayload) error {
	params := url.Values{
		"first_name":   {lead.FirstName},
		"last_name":    {lead.LastName},
		"city":         {lead.City},
		"state":        {lead.State},
		"zip_code":     {lead.ZipCode},
		"phone_number": {lead.Phone},
		"list_id":      {lead.ListID},
		"phone_code":   {"1"},
		"source":       {"MC"},
		"callSource":   {"Caller"},
	}
	if lead.Age != nil {
		params.Set("age", strconv.Itoa(*lead.Age))
	}

	res, err := c.call(ctx, "add_lead", params)
	if err != nil {
		return err
	}
	if strings.Contains(res, "ERROR") {
		return fmt.Errorf("ytel add_lead failed: %s", strings.TrimSpace(res))
	}
	return nil
}

// firstCSVField returns the named column of the first data row; empty when there is none
func firstCSVField(payload, column string) (string, error) {
	r := csv.NewReader(strings.NewReader(payload))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("invalid csv payload: %w", err)
	}
	idx := -1
	for i, name := range header {
		if strings.EqualFold(strings.TrimSpace(name), column) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", nil
	}

	row, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("invalid csv payload: %w", err)
	}
	if idx >= len(row) {
		return "", nil
	}
	return strings.TrimSpace(row[idx]), nil
}
