// Package services provides external service integrations and technical concerns like telephony, partner APIs and error reporting
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amirphl/dialflow/config"
	"github.com/amirphl/dialflow/utils"
	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	lookupsV2 "github.com/twilio/twilio-go/rest/lookups/v2"
)

// Machine detection modes understood by the telephony platform
const (
	MachineDetectionEnable     = "Enable"
	MachineDetectionMessageEnd = "DetectMessageEnd"
)

// CallRequest describes an outbound call leg
type CallRequest struct {
	From                    string
	To                      string
	URL                     string // entry webhook rendering the first prompt
	StatusCallback          string
	StatusCallbackEvents    []string
	MachineDetection        string
	MachineDetectionTimeout int
	Record                  bool
}

// SMSRequest describes an outbound text message
type SMSRequest struct {
	From           string
	To             string
	Body           string
	StatusCallback string
}

// Line types reported by the carrier lookup
const (
	LineTypeMobile   = "mobile"
	LineTypeLandline = "landline"
)

// SMSResult is the platform acknowledgment of a queued message
type SMSResult struct {
	SID    string
	Status string
}

// TelephonyClient places calls and sends texts through the telephony platform
type TelephonyClient interface {
	PlaceCall(ctx context.Context, req CallRequest) (string, error)
	SendSMS(ctx context.Context, req SMSRequest) (*SMSResult, error)
	// LookupLineType returns the carrier line type of phone, e.g. "mobile"
	LookupLineType(ctx context.Context, phone string) (string, error)
}

// TwilioTelephonyClient implements TelephonyClient on top of the Twilio REST API
type TwilioTelephonyClient struct {
	client *twilio.RestClient
}

// NewTelephonyClient returns the client selected by cfg.Provider
func NewTelephonyClient(cfg *config.TwilioConfig) TelephonyClient {
	if cfg.Provider == "mock" {
		return NewMockTelephonyClient()
	}
	return &TwilioTelephonyClient{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		}),
	}
}

// PlaceCall starts an outbound call and returns its sid
func (c *TwilioTelephonyClient) PlaceCall(ctx context.Context, req CallRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(req.URL)
	params.SetRecord(req.Record)
	if req.MachineDetection != "" {
		params.SetMachineDetection(req.MachineDetection)
		params.SetMachineDetectionTimeout(req.MachineDetectionTimeout)
	}
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback)
		params.SetStatusCallbackMethod("POST")
		params.SetStatusCallbackEvent(req.StatusCallbackEvents)
	}

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("failed to place call to %s: %w", req.To, err)
	}
	if resp.Sid == nil {
		return "", errors.New("call created without sid")
	}
	return *resp.Sid, nil
}

// SendSMS queues an outbound message
func (c *TwilioTelephonyClient) SendSMS(ctx context.Context, req SMSRequest) (*SMSResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetBody(req.Body)
	if req.StatusCallback != "" {
		params.SetStatusCallback(req.StatusCallback)
	}

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return nil, fmt.Errorf("failed to send sms to %s: %w", req.To, err)
	}
	if resp.Sid == nil {
		return nil, errors.New("message created without sid")
	}
	return &SMSResult{
		SID:    *resp.Sid,
		Status: fmt.Sprint(utils.Deref(resp.Status)),
	}, nil
}

// LookupLineType asks the Lookup API for the line type intelligence of phone
func (c *TwilioTelephonyClient) LookupLineType(ctx context.Context, phone string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &lookupsV2.FetchPhoneNumberParams{}
	params.SetFields("line_type_intelligence")

	resp, err := c.client.LookupsV2.FetchPhoneNumber(phone, params)
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", phone, err)
	}
	if resp.LineTypeIntelligence == nil {
		return "", fmt.Errorf("no line type reported for %s", phone)
	}
	info, ok := (*resp.LineTypeIntelligence).(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected line type payload for %s", phone)
	}
	lineType, _ := info["type"].(string)
	if lineType == "" {
		return "", fmt.Errorf("no line type reported for %s", phone)
	}
	return lineType, nil
}

// MockTelephonyClient records calls and texts in memory
type MockTelephonyClient struct {
	mu    sync.Mutex
	Calls []CallRequest
	Texts []SMSRequest

	// LineTypes maps phones to lookup results; unknown phones are mobile
	LineTypes map[string]string

	// Err, when set, is returned by every operation
	Err error
}

// NewMockTelephonyClient creates a new mock telephony client
func NewMockTelephonyClient() *MockTelephonyClient {
	return &MockTelephonyClient{}
}

// PlaceCall records the request and returns a fake sid
func (m *MockTelephonyClient) PlaceCall(ctx context.Context, req CallRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.Calls = append(m.Calls, req)
	return "CA" + uuid.NewString(), nil
}

// SendSMS records the request and returns a fake sid
func (m *MockTelephonyClient) SendSMS(ctx context.Context, req SMSRequest) (*SMSResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	m.Texts = append(m.Texts, req)
	return &SMSResult{SID: "SM" + uuid.NewString(), Status: "queued"}, nil
}

// LookupLineType returns the configured line type of phone
func (m *MockTelephonyClient) LookupLineType(ctx context.Context, phone string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if lineType, ok := m.LineTypes[phone]; ok {
		return lineType, nil
	}
	return LineTypeMobile, nil
}
