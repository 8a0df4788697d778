package businessflow

import (
	"context"
	"errors"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/dialflow/app/services"
	"github.com/amirphl/dialflow/config"
	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/repository"
	"github.com/sirupsen/logrus"
)

// In-memory collaborators for flow tests. Each fake embeds its repository
// interface so unexercised methods panic instead of silently passing.

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testURLs() CallbackURLs {
	return NewCallbackURLs(&config.TwilioConfig{
		APIURL:     "https://api.example.com/",
		StorageURL: "https://cdn.example.com",
	})
}

// alwaysOpen is a window set covering every minute of every day
func alwaysOpen() []models.ScheduleWindow {
	return []models.ScheduleWindow{{
		Days: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday},
		From: "00:00",
		To:   "23:59",
	}}
}

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// leads

type fakeLeadRepo struct {
	repository.LeadRepository
	mu        sync.Mutex
	leads     map[uint]*models.Lead
	campaigns map[uint]*models.Campaign
	nextID    uint
}

func newFakeLeadRepo(leads ...*models.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: make(map[uint]*models.Lead), nextID: 100}
	for _, l := range leads {
		r.leads[l.ID] = l
	}
	return r
}

func (r *fakeLeadRepo) get(id uint) *models.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil
	}
	return r.copyOf(l)
}

// copyOf detaches a stored lead and preloads its campaign
func (r *fakeLeadRepo) copyOf(l *models.Lead) *models.Lead {
	c := *l
	if c.Campaign == nil {
		c.Campaign = r.campaigns[c.CampaignID]
	}
	return &c
}

func (r *fakeLeadRepo) ByID(ctx context.Context, id uint) (*models.Lead, error) {
	return r.get(id), nil
}

func (r *fakeLeadRepo) LockByID(ctx context.Context, id uint) (*models.Lead, error) {
	return r.get(id), nil
}

func (r *fakeLeadRepo) ByPhones(ctx context.Context, phones []string) (*models.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if slices.Contains(phones, l.Phone) {
			return r.copyOf(l), nil
		}
	}
	return nil, nil
}

func (r *fakeLeadRepo) Save(ctx context.Context, lead *models.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	lead.ID = r.nextID
	c := *lead
	r.leads[lead.ID] = &c
	return nil
}

func (r *fakeLeadRepo) StartInteraction(ctx context.Context, leadID, interactionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.leads[leadID]
	l.CurrentInteraction = interactionID
	l.Status = models.LeadStatusNotCalled
	l.Version++
	return nil
}

func (r *fakeLeadRepo) UpdateStatus(ctx context.Context, leadID uint, version int, status models.LeadStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.leads[leadID]
	if l == nil || l.Version != version {
		return false, nil
	}
	l.Status = status
	l.Version++
	return true, nil
}

// campaigns, groups and step definitions

type fakeCampaignRepo struct {
	repository.CampaignRepository
	campaigns map[uint]*models.Campaign
}

func (r *fakeCampaignRepo) ByID(ctx context.Context, id uint) (*models.Campaign, error) {
	return r.campaigns[id], nil
}

type fakeGroupRepo struct {
	repository.FollowupGroupRepository
	groups []*models.FollowupGroup
}

func (r *fakeGroupRepo) ByID(ctx context.Context, id uint) (*models.FollowupGroup, error) {
	for _, g := range r.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, nil
}

func (r *fakeGroupRepo) ListByType(ctx context.Context, groupType models.FollowupGroupType) ([]*models.FollowupGroup, error) {
	var out []*models.FollowupGroup
	for _, g := range r.groups {
		if g.Type == groupType {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeFollowUpRepo struct {
	repository.FollowUpRepository
	steps []*models.FollowUp
}

func (r *fakeFollowUpRepo) ByID(ctx context.Context, id uint) (*models.FollowUp, error) {
	for _, s := range r.steps {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeFollowUpRepo) ByFilter(ctx context.Context, filter models.FollowUpFilter, orderBy string, limit, offset int) ([]*models.FollowUp, error) {
	var out []*models.FollowUp
	for _, s := range r.steps {
		if filter.FollowupGroupID != nil && s.FollowupGroupID != *filter.FollowupGroupID {
			continue
		}
		if filter.Incoming != nil && s.Incoming != *filter.Incoming {
			continue
		}
		if slices.Contains(filter.ExcludeTypes, s.Type) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (r *fakeFollowUpRepo) byID(id *uint) *models.FollowUp {
	if id == nil {
		return nil
	}
	s, _ := r.ByID(context.Background(), *id)
	return s
}

// step instances

type fakeProgressRepo struct {
	repository.FollowupProgressRepository
	mu        sync.Mutex
	rows      []*models.FollowupProgress
	nextID    uint
	followUps *fakeFollowUpRepo
	leads     *fakeLeadRepo
	dueCalls  int
}

func newFakeProgressRepo(followUps *fakeFollowUpRepo, leads *fakeLeadRepo) *fakeProgressRepo {
	return &fakeProgressRepo{followUps: followUps, leads: leads}
}

// snapshot returns detached copies of the rows of one episode ordered by step
func (r *fakeProgressRepo) snapshot(leadID, interactionID uint) []*models.FollowupProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FollowupProgress
	for _, row := range r.rows {
		if row.LeadID == leadID && row.LeadInteractionID == interactionID {
			out = append(out, r.detach(row))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

func (r *fakeProgressRepo) countStatus(leadID, interactionID uint, status models.ProgressStatus) int {
	n := 0
	for _, row := range r.snapshot(leadID, interactionID) {
		if row.Progress == status {
			n++
		}
	}
	return n
}

func (r *fakeProgressRepo) find(id uint) *models.FollowupProgress {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeProgressRepo) detach(row *models.FollowupProgress) *models.FollowupProgress {
	c := *row
	if r.followUps != nil {
		c.FollowUp = r.followUps.byID(row.FollowUpID)
	}
	return &c
}

func (r *fakeProgressRepo) SaveBatch(ctx context.Context, rows []*models.FollowupProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		r.nextID++
		row.ID = r.nextID
		c := *row
		c.FollowUp = nil
		r.rows = append(r.rows, &c)
	}
	return nil
}

func (r *fakeProgressRepo) SkipPending(ctx context.Context, leadID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.LeadID == leadID && row.Progress.Pending() {
			row.Progress = models.ProgressStatusSkip
			n++
		}
	}
	return n, nil
}

func (r *fakeProgressRepo) MaxInteraction(ctx context.Context, leadID uint) (uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var maxID uint
	for _, row := range r.rows {
		if row.LeadID == leadID {
			maxID = max(maxID, row.LeadInteractionID)
		}
	}
	return maxID, nil
}

func (r *fakeProgressRepo) HasNext(ctx context.Context, leadID, interactionID uint) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.LeadID == leadID && row.LeadInteractionID == interactionID && row.Progress == models.ProgressStatusNext {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProgressRepo) FirstWaiting(ctx context.Context, leadID, interactionID uint) (*models.FollowupProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *models.FollowupProgress
	for _, row := range r.rows {
		if row.LeadID != leadID || row.LeadInteractionID != interactionID ||
			row.Progress != models.ProgressStatusWaiting || row.FollowUpID == nil {
			continue
		}
		if best == nil || row.Step < best.Step {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	return r.detach(best), nil
}

func (r *fakeProgressRepo) Promote(ctx context.Context, id uint, estimatedTime time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.find(id)
	if row == nil || row.Progress != models.ProgressStatusWaiting {
		return false, nil
	}
	for _, sib := range r.rows {
		if sib.LeadID == row.LeadID && sib.LeadInteractionID == row.LeadInteractionID && sib.Progress == models.ProgressStatusNext {
			return false, nil
		}
	}
	row.Progress = models.ProgressStatusNext
	t := estimatedTime.UTC()
	row.EstimatedTime = &t
	return true, nil
}

func (r *fakeProgressRepo) transition(id uint, from, to models.ProgressStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.find(id)
	if row == nil || row.Progress != from {
		return false
	}
	row.Progress = to
	return true
}

func (r *fakeProgressRepo) Complete(ctx context.Context, id uint) (bool, error) {
	return r.transition(id, models.ProgressStatusNext, models.ProgressStatusComplete), nil
}

func (r *fakeProgressRepo) Consume(ctx context.Context, id uint) (bool, error) {
	return r.transition(id, models.ProgressStatusWaiting, models.ProgressStatusComplete), nil
}

func (r *fakeProgressRepo) DueNext(ctx context.Context, now time.Time) ([]*models.FollowupProgress, error) {
	r.mu.Lock()
	r.dueCalls++
	var out []*models.FollowupProgress
	for _, row := range r.rows {
		if row.Progress == models.ProgressStatusNext && row.FollowUpID != nil &&
			row.EstimatedTime != nil && !row.EstimatedTime.After(now) {
			out = append(out, r.detach(row))
		}
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].EstimatedTime.Before(*out[j].EstimatedTime) })
	for _, row := range out {
		if r.leads != nil {
			row.Lead = r.leads.get(row.LeadID)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) ListPendingByCampaign(ctx context.Context, campaignID uint) ([]*models.FollowupProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.FollowupProgress
	for _, row := range r.rows {
		if !row.Progress.Pending() {
			continue
		}
		c := r.detach(row)
		if c.FollowUp == nil || c.FollowUp.CampaignID != campaignID {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LeadID != out[j].LeadID {
			return out[i].LeadID < out[j].LeadID
		}
		return out[i].Step < out[j].Step
	})
	return out, nil
}

func (r *fakeProgressRepo) UpdateEstimatedTime(ctx context.Context, id uint, estimatedTime *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.find(id)
	if row == nil {
		return errors.New("followup progress not found")
	}
	row.EstimatedTime = estimatedTime
	return nil
}

// call logs

type fakeCallLogRepo struct {
	repository.CallLogRepository
	mu      sync.Mutex
	logs    map[string]*models.CallLog
	updates map[string]map[string]any
	nextID  uint
}

func newFakeCallLogRepo(logs ...*models.CallLog) *fakeCallLogRepo {
	r := &fakeCallLogRepo{logs: make(map[string]*models.CallLog), updates: make(map[string]map[string]any)}
	for _, l := range logs {
		r.logs[l.SID] = l
	}
	return r
}

func (r *fakeCallLogRepo) Save(ctx context.Context, log *models.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	log.ID = r.nextID
	c := *log
	r.logs[log.SID] = &c
	return nil
}

func (r *fakeCallLogRepo) BySID(ctx context.Context, sid string) (*models.CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[sid]
	if !ok {
		return nil, nil
	}
	c := *l
	return &c, nil
}

func (r *fakeCallLogRepo) UpdateBySID(ctx context.Context, sid string, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[sid]
	if !ok {
		return errors.New("call log not found")
	}
	merged := r.updates[sid]
	if merged == nil {
		merged = make(map[string]any)
		r.updates[sid] = merged
	}
	for k, v := range updates {
		merged[k] = v
		switch k {
		case "status":
			l.Status = v.(models.CallOutcome)
		case "call_status":
			l.CallStatus = v.(models.CallStatus)
		}
	}
	return nil
}

func (r *fakeCallLogRepo) bySID(sid string) *models.CallLog {
	l, _ := r.BySID(context.Background(), sid)
	return l
}

// ivr graph

type fakePromptRepo struct {
	repository.IVRPromptRepository
	mu          sync.Mutex
	prompts     map[uint]*models.IVRPrompt
	used        map[uint]int
	buttonsUsed [][2]uint
}

func newFakePromptRepo(prompts ...*models.IVRPrompt) *fakePromptRepo {
	r := &fakePromptRepo{prompts: make(map[uint]*models.IVRPrompt), used: make(map[uint]int)}
	for _, p := range prompts {
		r.prompts[p.ID] = p
	}
	return r
}

func (r *fakePromptRepo) ByID(ctx context.Context, id uint) (*models.IVRPrompt, error) {
	return r.prompts[id], nil
}

func (r *fakePromptRepo) FirstOfIVR(ctx context.Context, ivrID uint) (*models.IVRPrompt, error) {
	for _, p := range r.prompts {
		if p.IVRID == ivrID && p.First {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePromptRepo) IncrementUsed(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.used[id]++
	return nil
}

func (r *fakePromptRepo) IncrementButtonUsed(ctx context.Context, id uint, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buttonsUsed = append(r.buttonsUsed, [2]uint{id, uint(index)})
	return nil
}

type fakeMessageRepo struct {
	repository.IVRPromptMessageRepository
	byPrompt    map[uint][]*models.IVRPromptMessage
	used        map[uint]int
	conversions map[uint]int
}

func newFakeMessageRepo(messages ...*models.IVRPromptMessage) *fakeMessageRepo {
	r := &fakeMessageRepo{
		byPrompt:    make(map[uint][]*models.IVRPromptMessage),
		used:        make(map[uint]int),
		conversions: make(map[uint]int),
	}
	for _, m := range messages {
		r.byPrompt[m.IVRPromptID] = append(r.byPrompt[m.IVRPromptID], m)
	}
	return r
}

func (r *fakeMessageRepo) ListByPrompt(ctx context.Context, promptID uint) ([]*models.IVRPromptMessage, error) {
	return r.byPrompt[promptID], nil
}

func (r *fakeMessageRepo) IncrementUsed(ctx context.Context, id uint) error {
	r.used[id]++
	return nil
}

func (r *fakeMessageRepo) IncrementConversions(ctx context.Context, id uint) error {
	r.conversions[id]++
	return nil
}

// transfer destinations and partners

type fakeTransferNumberRepo struct {
	repository.TransferNumberRepository
	numbers []*models.TransferNumber
}

func (r *fakeTransferNumberRepo) ListActiveByOption(ctx context.Context, optionID uint) ([]*models.TransferNumber, error) {
	var out []*models.TransferNumber
	for _, n := range r.numbers {
		if n.TransferOptionID == optionID && n.Active {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

type fakePingRepo struct {
	repository.PingLogRepository
	mu   sync.Mutex
	logs []*models.PingLog
}

func (r *fakePingRepo) Save(ctx context.Context, log *models.PingLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

type fakePresence struct {
	services.InternalPresence
	mu        sync.Mutex
	available bool
	err       error
	probed    []string
	added     []services.LeadPayload
}

func (p *fakePresence) record(id string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probed = append(p.probed, id)
	return p.available, p.err
}

func (p *fakePresence) IsNumberAvailable(ctx context.Context, phone string) (bool, error) {
	return p.record(phone)
}

func (p *fakePresence) AgentStatus(ctx context.Context, agentID string) (bool, error) {
	return p.record(agentID)
}

func (p *fakePresence) AddLead(ctx context.Context, lead services.LeadPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, lead)
	return nil
}

type fakePinger struct {
	payloads []services.PingPayload
	result   string
	err      error
}

func (p *fakePinger) Ping(ctx context.Context, payload services.PingPayload) (string, error) {
	p.payloads = append(p.payloads, payload)
	return p.result, p.err
}

// fakePartners hands out presence clients keyed by integration id
type fakePartners struct {
	presences map[uint]*fakePresence
	pinger    *fakePinger
}

func (f *fakePartners) Presence(integration *models.Integration) (services.PresenceProvider, error) {
	if p, ok := f.presences[integration.ID]; ok {
		return p, nil
	}
	return nil, errors.New("no presence client")
}

func (f *fakePartners) Pinger(integration *models.Integration) (services.LeadPinger, error) {
	if f.pinger == nil || integration.Partner != models.PartnerOptimize {
		return nil, services.ErrNotSupported
	}
	return f.pinger, nil
}

// outbound numbers, integrations, conversations

type fakePhoneNumberRepo struct {
	repository.PhoneNumberRepository
	numbers []*models.PhoneNumber
}

func (r *fakePhoneNumberRepo) ByNumber(ctx context.Context, number string) (*models.PhoneNumber, error) {
	for _, n := range r.numbers {
		if n.Number == number {
			return n, nil
		}
	}
	return nil, nil
}

func (r *fakePhoneNumberRepo) RandomActive(ctx context.Context, campaignID uint) (*models.PhoneNumber, error) {
	for _, n := range r.numbers {
		if n.IsActive != nil && *n.IsActive && (n.CampaignID == nil || *n.CampaignID == campaignID) {
			return n, nil
		}
	}
	return nil, nil
}

type fakeIntegrationRepo struct {
	repository.IntegrationRepository
	integrations []*models.Integration
}

func (r *fakeIntegrationRepo) FirstByPartner(ctx context.Context, partner models.Partner) (*models.Integration, error) {
	for _, i := range r.integrations {
		if i.Partner == partner {
			return i, nil
		}
	}
	return nil, nil
}

type fakeContactRepo struct {
	repository.SMSContactRepository
	mu       sync.Mutex
	contacts map[uint]*models.SMSContact
	messages []*models.Message
	nextID   uint
}

func newFakeContactRepo(contacts ...*models.SMSContact) *fakeContactRepo {
	r := &fakeContactRepo{contacts: make(map[uint]*models.SMSContact), nextID: 50}
	for _, c := range contacts {
		r.contacts[c.LeadID] = c
	}
	return r
}

func (r *fakeContactRepo) Save(ctx context.Context, contact *models.SMSContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	contact.ID = r.nextID
	c := *contact
	r.contacts[contact.LeadID] = &c
	return nil
}

func (r *fakeContactRepo) ByLead(ctx context.Context, leadID uint) (*models.SMSContact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[leadID]
	if !ok {
		return nil, nil
	}
	cc := *c
	return &cc, nil
}

func (r *fakeContactRepo) Update(ctx context.Context, id uint, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.ID != id {
			continue
		}
		for k, v := range updates {
			switch k {
			case "archived":
				c.Archived = v.(bool)
			case "last_message":
				c.LastMessage = v.(string)
			case "call_log_id":
				id := v.(uint)
				c.CallLogID = &id
			case "user_id":
				c.UserID = v.(*uint)
			}
		}
		return nil
	}
	return errors.New("contact not found")
}

func (r *fakeContactRepo) AddMessage(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return nil
}

type fakeBlockRepo struct {
	repository.BlockListRepository
	phones []string
}

func (r *fakeBlockRepo) IsPhoneBlocked(ctx context.Context, phone string) (bool, error) {
	return slices.Contains(r.phones, phone), nil
}

type fakeUserRepo struct {
	repository.UserRepository
	agent *models.User
}

func (r *fakeUserRepo) RandomAgent(ctx context.Context) (*models.User, error) {
	return r.agent, nil
}

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(err error, tags map[string]string, extras map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recordingReporter) Flush(timeout time.Duration) {}
