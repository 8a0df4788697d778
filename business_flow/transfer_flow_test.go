package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	numbers  *fakeTransferNumberRepo
	pings    *fakePingRepo
	partners *fakePartners
	resolver TransferResolver
}

func newResolverFixture(t *testing.T, reservations services.ReservationStore, numbers ...*models.TransferNumber) *resolverFixture {
	t.Helper()
	f := &resolverFixture{
		numbers:  &fakeTransferNumberRepo{numbers: numbers},
		pings:    &fakePingRepo{},
		partners: &fakePartners{presences: map[uint]*fakePresence{}},
	}
	f.resolver = NewTransferResolver(f.numbers, f.pings, f.partners, reservations, time.Second, testLogger())
	return f
}

func agentNumber(id uint, order int, integration *models.Integration) *models.TransferNumber {
	return &models.TransferNumber{
		ID:               id,
		Name:             "agent",
		Source:           models.TransferSourceInternalAgents,
		Active:           true,
		Order:            order,
		TransferOptionID: 1,
		Agent: &models.Agent{
			ID:          id * 10,
			Phone:       "+1555000" + string(rune('0'+id)) + "000",
			AgentID:     "agent-" + string(rune('0'+id)),
			StartAge:    18,
			EndAge:      100,
			Integration: integration,
		},
	}
}

func manualNumber(id uint, order int) *models.TransferNumber {
	return &models.TransferNumber{
		ID:               id,
		Phone:            "+15559990000",
		Source:           models.TransferSourceManual,
		Active:           true,
		Order:            order,
		TransferOptionID: 1,
	}
}

func TestTransferResolverGetAvailableNumber(t *testing.T) {
	ctx := context.Background()
	ytel := &models.Integration{ID: 1, Partner: models.PartnerYtel, AccountID: "list-7"}
	dialpad := &models.Integration{ID: 2, Partner: models.PartnerDialpad}

	t.Run("SkipsUnavailableAgent", func(t *testing.T) {
		a := agentNumber(1, 1, ytel)
		b := agentNumber(2, 2, dialpad)
		f := newResolverFixture(t, nil, a, b, manualNumber(3, 3))
		f.partners.presences[1] = &fakePresence{available: false}
		f.partners.presences[2] = &fakePresence{available: true}

		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		require.NotNil(t, number)
		assert.Equal(t, b.ID, number.ID)

		// dialpad is probed by the agent's phone, ytel by the agent id
		assert.Equal(t, []string{b.Agent.Phone}, f.partners.presences[2].probed)
		assert.Equal(t, []string{a.Agent.AgentID}, f.partners.presences[1].probed)
		assert.Empty(t, f.partners.presences[1].added, "an unavailable agent gets no lead")
	})

	t.Run("PriorityOrderWins", func(t *testing.T) {
		a := agentNumber(1, 1, dialpad)
		b := agentNumber(2, 2, dialpad)
		f := newResolverFixture(t, nil, b, a)
		f.partners.presences[2] = &fakePresence{available: true}

		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, number.ID)
	})

	t.Run("AgeOutsideRangeExcludesAgent", func(t *testing.T) {
		a := agentNumber(1, 1, dialpad)
		a.Agent.StartAge, a.Agent.EndAge = 18, 30
		manual := manualNumber(3, 2)
		f := newResolverFixture(t, nil, a, manual)
		f.partners.presences[2] = &fakePresence{available: true}

		lead := testLead(1)
		lead.Age = utils.ToPtr(45)
		number, err := f.resolver.GetAvailableNumber(ctx, 1, lead, "CA1")
		require.NoError(t, err)
		assert.Equal(t, manual.ID, number.ID)
		assert.Empty(t, f.partners.presences[2].probed)
	})

	t.Run("StateOutsideListExcludesAgent", func(t *testing.T) {
		a := agentNumber(1, 1, dialpad)
		a.Agent.States = []string{"CA", "NV"}
		f := newResolverFixture(t, nil, a)
		f.partners.presences[2] = &fakePresence{available: true}

		lead := testLead(1)
		lead.State = "TX"
		number, err := f.resolver.GetAvailableNumber(ctx, 1, lead, "CA1")
		require.NoError(t, err)
		assert.Nil(t, number)

		lead.State = "NV"
		number, err = f.resolver.GetAvailableNumber(ctx, 1, lead, "CA1")
		require.NoError(t, err)
		require.NotNil(t, number)
		assert.Equal(t, a.ID, number.ID)
	})

	t.Run("FailedProbeCountsAsUnavailable", func(t *testing.T) {
		a := agentNumber(1, 1, dialpad)
		manual := manualNumber(3, 2)
		f := newResolverFixture(t, nil, a, manual)
		f.partners.presences[2] = &fakePresence{available: true, err: errors.New("timeout")}

		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		assert.Equal(t, manual.ID, number.ID)
	})

	t.Run("NothingConfigured", func(t *testing.T) {
		f := newResolverFixture(t, nil)
		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		assert.Nil(t, number)
	})

	t.Run("YtelWinnerReceivesLead", func(t *testing.T) {
		a := agentNumber(1, 1, ytel)
		f := newResolverFixture(t, nil, a)
		presence := &fakePresence{available: true}
		f.partners.presences[1] = presence

		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		require.NotNil(t, number)
		require.Len(t, presence.added, 1)
		assert.Equal(t, "list-7", presence.added[0].ListID)
	})

	t.Run("ReservedDestinationIsPassedOver", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rc.Close() })
		store := services.NewRedisReservationStore(rc, "test:", time.Minute)

		a := agentNumber(1, 1, dialpad)
		b := agentNumber(2, 2, dialpad)
		f := newResolverFixture(t, store, a, b)
		f.partners.presences[2] = &fakePresence{available: true}

		held, err := store.Reserve(ctx, a.ID, "CA-other")
		require.NoError(t, err)
		require.True(t, held)

		number, err := f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA1")
		require.NoError(t, err)
		require.NotNil(t, number)
		assert.Equal(t, b.ID, number.ID)

		mr.FastForward(2 * time.Minute)
		number, err = f.resolver.GetAvailableNumber(ctx, 1, testLead(1), "CA2")
		require.NoError(t, err)
		assert.Equal(t, a.ID, number.ID)
	})
}

func TestTransferResolverPing(t *testing.T) {
	ctx := context.Background()
	optimize := &models.Integration{ID: 4, Partner: models.PartnerOptimize}

	t.Run("StoresPartnerResult", func(t *testing.T) {
		number := manualNumber(3, 1)
		number.Integration = optimize
		f := newResolverFixture(t, nil, number)
		f.partners.pinger = &fakePinger{result: `{"ok":true}`}

		lead := testLead(1)
		lead.OptimizeID = "opt-1"
		f.resolver.Ping(ctx, number, lead)

		require.Len(t, f.partners.pinger.payloads, 1)
		payload := f.partners.pinger.payloads[0]
		assert.Equal(t, lead.Phone, payload.Phone)
		assert.Equal(t, "opt-1", payload.OptimizeID)
		_, err := time.Parse("2006-01-02T15:04:05.000Z07:00", payload.Date)
		assert.NoError(t, err)

		require.Len(t, f.pings.logs, 1)
		assert.Equal(t, `{"ok":true}`, f.pings.logs[0].Result)
		assert.Equal(t, number.ID, f.pings.logs[0].TransferNumberID)
		assert.Equal(t, optimize.ID, f.pings.logs[0].IntegrationID)
	})

	t.Run("PartnerWithoutPingIsIgnored", func(t *testing.T) {
		number := manualNumber(3, 1)
		number.Integration = &models.Integration{ID: 5, Partner: models.PartnerDialpad}
		f := newResolverFixture(t, nil, number)
		f.partners.pinger = &fakePinger{}

		f.resolver.Ping(ctx, number, testLead(1))
		assert.Empty(t, f.partners.pinger.payloads)
		assert.Empty(t, f.pings.logs)
	})

	t.Run("FailedPingIsNotStored", func(t *testing.T) {
		number := manualNumber(3, 1)
		number.Integration = optimize
		f := newResolverFixture(t, nil, number)
		f.partners.pinger = &fakePinger{err: errors.New("503")}

		f.resolver.Ping(ctx, number, testLead(1))
		assert.Empty(t, f.pings.logs)
	})
}
