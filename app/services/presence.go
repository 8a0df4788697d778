package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amirphl/dialflow/config"
	"github.com/amirphl/dialflow/models"
	"golang.org/x/time/rate"
)

// ErrNotSupported is returned by partners that lack a capability
var ErrNotSupported = errors.New("operation not supported by partner")

// LeadPayload carries the lead attributes pushed to a partner CRM
type LeadPayload struct {
	FirstName string
	LastName  string
	City      string
	State     string
	ZipCode   string
	Phone     string
	Age       *int
	ListID    string
}

// NewLeadPayload copies the pushable attributes of lead
func NewLeadPayload(lead *models.Lead, listID string) LeadPayload {
	return LeadPayload{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		City:      lead.City,
		State:     lead.State,
		ZipCode:   lead.ZipCode,
		Phone:     lead.Phone,
		Age:       lead.Age,
		ListID:    listID,
	}
}

// PresenceProvider is the partner-agnostic presence and CRM surface
type PresenceProvider interface {
	Test(ctx context.Context) error
	ListNumbers(ctx context.Context) ([]string, error)
	IsNumberAvailable(ctx context.Context, phone string) (bool, error)
	AgentStatus(ctx context.Context, agentID string) (bool, error)
	AddLead(ctx context.Context, lead LeadPayload) error
}

// PingPayload is the body of a pre-transfer ping
type PingPayload struct {
	Phone      string `json:"phone"`
	OptimizeID string `json:"optimizeId"`
	Date       string `json:"date"`
}

// LeadPinger notifies a partner that a lead is about to be transferred
type LeadPinger interface {
	Ping(ctx context.Context, payload PingPayload) (string, error)
}

// PartnerFactory builds partner clients from stored integrations
type PartnerFactory interface {
	Presence(integration *models.Integration) (PresenceProvider, error)
	Pinger(integration *models.Integration) (LeadPinger, error)
}

// PartnerFactoryImpl implements PartnerFactory
type PartnerFactoryImpl struct {
	config   *config.IntegrationsConfig
	sealer   CredentialSealer
	client   *http.Client
	limiters map[models.Partner]*rate.Limiter
}

// NewPartnerFactory creates a factory whose clients share one limiter per partner
func NewPartnerFactory(cfg *config.IntegrationsConfig, sealer CredentialSealer) PartnerFactory {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := max(cfg.Burst, 1)
	limiters := make(map[models.Partner]*rate.Limiter)
	for _, p := range []models.Partner{models.PartnerDialpad, models.PartnerYtel, models.PartnerOptimize} {
		limiters[p] = rate.NewLimiter(limit, burst)
	}
	return &PartnerFactoryImpl{
		config:   cfg,
		sealer:   sealer,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		limiters: limiters,
	}
}

// Presence returns the presence client for the integration's partner
func (f *PartnerFactoryImpl) Presence(integration *models.Integration) (PresenceProvider, error) {
	if integration == nil {
		return nil, errors.New("integration is nil")
	}
	apiKey, err := f.sealer.Open(integration.APIKey)
	if err != nil {
		return nil, err
	}
	partner := partnerHTTP{client: f.client, limiter: f.limiters[integration.Partner]}

	switch integration.Partner {
	case models.PartnerYtel:
		return &YtelClient{
			partnerHTTP: partner,
			baseURL:     fmt.Sprintf(f.config.YtelHost, integration.AccountName),
			password:    apiKey,
		}, nil
	case models.PartnerDialpad:
		return &DialpadClient{
			partnerHTTP: partner,
			baseURL:     f.config.DialpadBaseURL,
			officeID:    integration.AccountID,
			apiKey:      apiKey,
		}, nil
	case models.PartnerInternal, models.PartnerOptimize:
		return InternalPresence{}, nil
	default:
		return nil, fmt.Errorf("unknown partner %q", integration.Partner)
	}
}

// Pinger returns the ping client, or ErrNotSupported for partners without one
func (f *PartnerFactoryImpl) Pinger(integration *models.Integration) (LeadPinger, error) {
	if integration == nil || integration.Partner != models.PartnerOptimize {
		return nil, ErrNotSupported
	}
	apiKey, err := f.sealer.Open(integration.APIKey)
	if err != nil {
		return nil, err
	}
	return &OptimizeClient{
		partnerHTTP: partnerHTTP{client: f.client, limiter: f.limiters[models.PartnerOptimize]},
		url:         f.config.OptimizePingURL,
		token:       apiKey,
	}, nil
}

// InternalPresence has no presence API: every probe reports unavailable
type InternalPresence struct{}

func (InternalPresence) Test(ctx context.Context) error { return nil }
func (InternalPresence) ListNumbers(ctx context.Context) ([]string, error) {
	return nil, ErrNotSupported
}
func (InternalPresence) IsNumberAvailable(ctx context.Context, phone string) (bool, error) {
	return false, nil
}
func (InternalPresence) AgentStatus(ctx context.Context, agentID string) (bool, error) {
	return false, nil
}
func (InternalPresence) AddLead(ctx context.Context, lead LeadPayload) error {
	return ErrNotSupported
}

// partnerHTTP is the throttled transport shared by partner clients
type partnerHTTP struct {
	client  *http.Client
	limiter *rate.Limiter
}

// do waits for a token, executes req and returns the body of a 2xx response
func (p partnerHTTP) do(req *http.Request) ([]byte, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	client := p.client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", req.URL.Host, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s responded %d: %s", req.URL.Host, resp.StatusCode, string(body))
	}
	return body, nil
}
