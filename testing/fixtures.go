package testing

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/amirphl/dialflow/models"
	"github.com/amirphl/dialflow/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomPhone returns a random E.164 number in the 555 range
func RandomPhone() string {
	return fmt.Sprintf("+1555%07d", rand.IntN(10000000))
}

// CreateTestCampaign creates an active campaign open on weekdays 09:00-17:00
func (tf *TestFixtures) CreateTestCampaign() (*models.Campaign, error) {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	campaign := &models.Campaign{
		UUID:      uuid.New(),
		Name:      "Test Campaign",
		IsActive:  utils.ToPtr(true),
		TimeZone:  "UTC",
		Schedules: []models.ScheduleWindow{{Days: weekdays, From: "09:00", To: "17:00"}},
	}
	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestLead creates a lead with a random phone in the campaign
func (tf *TestFixtures) CreateTestLead(campaignID uint) (*models.Lead, error) {
	lead := &models.Lead{
		UUID:       uuid.New(),
		FirstName:  "John",
		LastName:   "Doe",
		Phone:      RandomPhone(),
		Type:       models.LeadTypeMobile,
		State:      "CA",
		Status:     models.LeadStatusNotCalled,
		Version:    1,
		CampaignID: campaignID,
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

// CreateTestFollowupGroup creates a group whose steps have the given types,
// in order, one hour apart
func (tf *TestFixtures) CreateTestFollowupGroup(campaignID uint, groupType models.FollowupGroupType, steps ...models.FollowupType) (*models.FollowupGroup, []*models.FollowUp, error) {
	group := &models.FollowupGroup{
		Name:       "Test Group",
		Type:       groupType,
		CampaignID: campaignID,
	}
	if err := tf.DB.DB.Create(group).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create followup group: %w", err)
	}

	followUps := make([]*models.FollowUp, 0, len(steps))
	for i, stepType := range steps {
		f := &models.FollowUp{
			Type:            stepType,
			Hours:           min(i, 1),
			Order:           i,
			CampaignID:      campaignID,
			FollowupGroupID: group.ID,
		}
		if err := tf.DB.DB.Create(f).Error; err != nil {
			return nil, nil, fmt.Errorf("failed to create follow up: %w", err)
		}
		followUps = append(followUps, f)
	}
	return group, followUps, nil
}

// CreateTestProgress inserts a step instance for the lead
func (tf *TestFixtures) CreateTestProgress(leadID, interactionID uint, step int, status models.ProgressStatus, followUpID *uint, at *time.Time) (*models.FollowupProgress, error) {
	row := &models.FollowupProgress{
		Step:              step,
		Progress:          status,
		EstimatedTime:     at,
		LeadInteractionID: interactionID,
		LeadID:            leadID,
		FollowUpID:        followUpID,
	}
	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create followup progress: %w", err)
	}
	return row, nil
}

// CreateTestPhoneNumber adds an active outbound number to the campaign pool
func (tf *TestFixtures) CreateTestPhoneNumber(campaignID *uint) (*models.PhoneNumber, error) {
	number := &models.PhoneNumber{
		Number:     RandomPhone(),
		Source:     "Twilio",
		IsActive:   utils.ToPtr(true),
		CampaignID: campaignID,
	}
	if err := tf.DB.DB.Create(number).Error; err != nil {
		return nil, fmt.Errorf("failed to create phone number: %w", err)
	}
	return number, nil
}

// CreateTestIVR creates an IVR with an entry prompt carrying the given
// weighted message variants
func (tf *TestFixtures) CreateTestIVR(percents ...int) (*models.IVR, *models.IVRPrompt, []*models.IVRPromptMessage, error) {
	ivr := &models.IVR{Name: "Test IVR", Speed: 1, PauseTime: 2, LoopTime: 3, Loop: 3}
	if err := tf.DB.DB.Create(ivr).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create ivr: %w", err)
	}

	prompt := &models.IVRPrompt{
		Type:    models.PromptTypePrompt,
		Buttons: []models.PromptButton{{Next: 0}, {Next: 0}},
		First:   true,
		IVRID:   ivr.ID,
	}
	if err := tf.DB.DB.Create(prompt).Error; err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create ivr prompt: %w", err)
	}

	messages := make([]*models.IVRPromptMessage, 0, len(percents))
	for i, percent := range percents {
		m := &models.IVRPromptMessage{
			Content:     fmt.Sprintf("Variant %d", i+1),
			Percent:     percent,
			IVRPromptID: prompt.ID,
		}
		if err := tf.DB.DB.Create(m).Error; err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create ivr prompt message: %w", err)
		}
		messages = append(messages, m)
	}
	return ivr, prompt, messages, nil
}
