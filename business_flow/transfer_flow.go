package businessflow

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/amirphl/dialflow/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// pingDateLayout matches the millisecond ISO-8601 form partners expect
const pingDateLayout = "2006-01-02T15:04:05.000Z07:00"

// TransferResolver picks a live destination for a transfer node
type TransferResolver interface {
	// GetAvailableNumber returns the destination to bridge to, or nil when none exists
	GetAvailableNumber(ctx context.Context, optionID uint, lead *models.Lead, callSID string) (*models.TransferNumber, error)
	// Ping notifies the destination's partner that lead is being transferred; failures are only logged
	Ping(ctx context.Context, number *models.TransferNumber, lead *models.Lead)
}

// TransferResolverImpl implements TransferResolver
type TransferResolverImpl struct {
	numberRepo   repository.TransferNumberRepository
	pingRepo     repository.PingLogRepository
	partners     services.PartnerFactory
	reservations services.ReservationStore
	probeTimeout time.Duration
	logger       *logrus.Entry
}

func NewTransferResolver(
	numberRepo repository.TransferNumberRepository,
	pingRepo repository.PingLogRepository,
	partners services.PartnerFactory,
	reservations services.ReservationStore,
	probeTimeout time.Duration,
	logger *logrus.Logger,
) TransferResolver {
	if reservations == nil {
		reservations = services.NoopReservationStore{}
	}
	return &TransferResolverImpl{
		numberRepo:   numberRepo,
		pingRepo:     pingRepo,
		partners:     partners,
		reservations: reservations,
		probeTimeout: probeTimeout,
		logger:       logger.WithField("component", "transfer_resolver"),
	}
}

// GetAvailableNumber probes every eligible agent destination concurrently and
// returns the first available one in priority order. When no agent is
// available the first manual destination is returned.
func (r *TransferResolverImpl) GetAvailableNumber(ctx context.Context, optionID uint, lead *models.Lead, callSID string) (*models.TransferNumber, error) {
	numbers, err := r.numberRepo.ListActiveByOption(ctx, optionID)
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.TransferNumber, 0, len(numbers))
	for _, n := range numbers {
		if n.AgentBound() && n.Agent.Accepts(lead) {
			candidates = append(candidates, n)
		}
	}

	available := r.probe(ctx, candidates)
	for i, n := range candidates {
		if !available[i] {
			continue
		}
		reserved, err := r.reservations.Reserve(ctx, n.ID, callSID)
		if err != nil {
			r.logger.WithError(err).WithField("transfer_number_id", n.ID).Warn("reservation failed, destination used unreserved")
			reserved = true
		}
		if !reserved {
			r.logger.WithField("transfer_number_id", n.ID).Info("destination held by another call")
			continue
		}
		r.pushLead(ctx, n, lead)
		return n, nil
	}

	for _, n := range numbers {
		if n.Source == models.TransferSourceManual {
			return n, nil
		}
	}
	return nil, nil
}

// probe asks each candidate's presence API whether it can take a call.
// A failed probe counts as unavailable.
func (r *TransferResolverImpl) probe(ctx context.Context, candidates []*models.TransferNumber) []bool {
	available := make([]bool, len(candidates))
	if len(candidates) == 0 {
		return available
	}

	probeCtx := ctx
	if r.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, r.probeTimeout)
		defer cancel()
	}

	var g errgroup.Group
	for i, n := range candidates {
		g.Go(func() error {
			ok, err := r.isAvailable(probeCtx, n)
			if err != nil {
				r.logger.WithError(err).WithFields(logrus.Fields{
					"transfer_number_id": n.ID,
					"agent_id":           n.Agent.ID,
				}).Warn("presence probe failed")
				return nil
			}
			available[i] = ok
			return nil
		})
	}
	_ = g.Wait()
	return available
}

func (r *TransferResolverImpl) isAvailable(ctx context.Context, n *models.TransferNumber) (bool, error) {
	integration := n.PresenceIntegration()
	if integration == nil {
		return false, nil
	}
	presence, err := r.partners.Presence(integration)
	if err != nil {
		return false, err
	}
	if integration.Partner == models.PartnerDialpad {
		return presence.IsNumberAvailable(ctx, n.Agent.Phone)
	}
	return presence.AgentStatus(ctx, n.Agent.AgentID)
}

// pushLead adds the lead to the Ytel list of the winning destination
func (r *TransferResolverImpl) pushLead(ctx context.Context, n *models.TransferNumber, lead *models.Lead) {
	integration := n.PresenceIntegration()
	if integration == nil || integration.Partner != models.PartnerYtel {
		return
	}
	presence, err := r.partners.Presence(integration)
	if err == nil {
		err = presence.AddLead(ctx, services.NewLeadPayload(lead, integration.AccountID))
	}
	if err != nil {
		r.logger.WithError(externalError("ytel add_lead", err)).WithFields(logrus.Fields{
			"transfer_number_id": n.ID,
			"lead_id":            lead.ID,
		}).Error("pre-transfer lead push failed")
	}
}

func (r *TransferResolverImpl) Ping(ctx context.Context, number *models.TransferNumber, lead *models.Lead) {
	if number == nil || lead == nil || number.Integration == nil {
		return
	}
	pinger, err := r.partners.Pinger(number.Integration)
	if errors.Is(err, services.ErrNotSupported) {
		return
	}
	log := r.logger.WithFields(logrus.Fields{
		"transfer_number_id": number.ID,
		"lead_id":            lead.ID,
		"integration_id":     number.Integration.ID,
	})
	if err != nil {
		log.WithError(err).Error("ping client unavailable")
		return
	}

	result, err := pinger.Ping(ctx, services.PingPayload{
		Phone:      lead.Phone,
		OptimizeID: lead.OptimizeID,
		Date:       utils.UTCNow().Format(pingDateLayout),
	})
	if err != nil {
		log.WithError(externalError("ping", err)).Error("ping failed")
		return
	}

	if err := r.pingRepo.Save(ctx, &models.PingLog{
		Result:           result,
		TransferNumberID: number.ID,
		LeadID:           lead.ID,
		IntegrationID:    number.Integration.ID,
	}); err != nil {
		log.WithError(err).Error("failed to store ping log")
	}
}
