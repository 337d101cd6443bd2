package broadcast

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/model"
)

func newServiceEnv(campaign *model.Campaign) (*Service, *fakeJobRepo, *fakeCampaignRepo, *fakeRecipientRepo) {
	jobs := newFakeJobRepo()
	campaigns := newFakeCampaignRepo(campaign)
	recipients := newFakeRecipientRepo()
	templates := &fakeTemplateRepo{templates: map[int]*model.Template{
		1: {ID: 1, Name: "welcome_offer", Status: model.TemplateApproved},
		2: {ID: 2, Name: "payment_reminder", Status: model.TemplatePending},
	}}
	segments := &fakeSegmentRepo{segments: map[int]*model.Segment{
		1: {ID: 1, Name: "everyone", IsActive: true},
	}}
	service := &Service{
		Campaigns:  campaigns,
		Jobs:       jobs,
		Recipients: recipients,
		Templates:  templates,
		Segments:   segments,
		Log:        zerolog.Nop(),
	}
	return service, jobs, campaigns, recipients
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	service, jobs, campaigns, _ := newServiceEnv(segmentedCampaign())

	require.NoError(t, service.Enqueue(10))

	job, err := jobs.GetByCampaignID(10)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Nil(t, job.LockedAt)

	campaign, _ := campaigns.GetByID(10)
	assert.Equal(t, model.CampaignScheduled, campaign.Status)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	service, jobs, _, _ := newServiceEnv(segmentedCampaign())

	require.NoError(t, service.Enqueue(10))
	first, err := jobs.GetByCampaignID(10)
	require.NoError(t, err)

	require.NoError(t, service.Enqueue(10))
	second, err := jobs.GetByCampaignID(10)
	require.NoError(t, err)

	// Same job row, still a single pending job.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.JobPending, second.Status)
	assert.Len(t, jobs.jobs, 1)
}

func TestEnqueueRelaunchResetsFailedJob(t *testing.T) {
	service, jobs, campaigns, _ := newServiceEnv(segmentedCampaign())

	require.NoError(t, service.Enqueue(10))
	job, _ := jobs.GetByCampaignID(10)
	require.NoError(t, jobs.Fail(job.ID, "segment resolved to zero recipients"))
	require.NoError(t, campaigns.MarkFailed(10, "segment resolved to zero recipients"))

	require.NoError(t, service.Enqueue(10))

	job, _ = jobs.GetByCampaignID(10)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Empty(t, job.LastError)

	campaign, _ := campaigns.GetByID(10)
	assert.Equal(t, model.CampaignScheduled, campaign.Status)
	assert.Empty(t, campaign.ErrorMessage)
}

func TestEnqueueUnknownCampaign(t *testing.T) {
	service, jobs, _, _ := newServiceEnv(segmentedCampaign())

	err := service.Enqueue(999)
	require.Error(t, err)
	var notFound *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, err, &notFound)

	job, _ := jobs.GetByCampaignID(999)
	assert.Nil(t, job)
}

func TestEnqueueRejectsUnapprovedTemplate(t *testing.T) {
	segmentID := 1
	campaign := &model.Campaign{ID: 10, TemplateID: 2, SegmentID: &segmentID, Status: model.CampaignDraft}
	service, jobs, _, _ := newServiceEnv(campaign)

	err := service.Enqueue(10)
	require.Error(t, err)
	var notApproved *appErrors.ErrTemplateNotApproved
	assert.ErrorAs(t, err, &notApproved)

	job, _ := jobs.GetByCampaignID(10)
	assert.Nil(t, job)
}

func TestEnqueueRejectsMissingSegment(t *testing.T) {
	segmentID := 42
	campaign := &model.Campaign{ID: 10, TemplateID: 1, SegmentID: &segmentID, Status: model.CampaignDraft}
	service, jobs, _, _ := newServiceEnv(campaign)

	err := service.Enqueue(10)
	require.Error(t, err)
	var notFound *appErrors.ErrSegmentNotFound
	assert.ErrorAs(t, err, &notFound)

	job, _ := jobs.GetByCampaignID(10)
	assert.Nil(t, job)
}

func TestPauseOnlyAffectsRunningJob(t *testing.T) {
	service, jobs, campaigns, _ := newServiceEnv(segmentedCampaign())
	require.NoError(t, service.Enqueue(10))

	// Pending, not running: pause is a no-op.
	require.NoError(t, service.Pause(10))
	job, _ := jobs.GetByCampaignID(10)
	assert.Equal(t, model.JobPending, job.Status)
	campaign, _ := campaigns.GetByID(10)
	assert.Equal(t, model.CampaignScheduled, campaign.Status)

	_, err := jobs.ClaimNext("worker-a", 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, service.Pause(10))
	job, _ = jobs.GetByCampaignID(10)
	assert.Equal(t, model.JobPaused, job.Status)
	campaign, _ = campaigns.GetByID(10)
	assert.Equal(t, model.CampaignPaused, campaign.Status)
}

func TestResumeClearsLockAndRequeues(t *testing.T) {
	service, jobs, campaigns, _ := newServiceEnv(segmentedCampaign())
	require.NoError(t, service.Enqueue(10))
	_, err := jobs.ClaimNext("worker-a", 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, service.Pause(10))

	require.NoError(t, service.Resume(10))

	job, _ := jobs.GetByCampaignID(10)
	assert.Equal(t, model.JobPending, job.Status)
	assert.Nil(t, job.LockedAt)
	assert.Empty(t, job.LockedBy)

	campaign, _ := campaigns.GetByID(10)
	assert.Equal(t, model.CampaignScheduled, campaign.Status)

	// Resuming a job that is not paused changes nothing.
	require.NoError(t, service.Resume(10))
	job, _ = jobs.GetByCampaignID(10)
	assert.Equal(t, model.JobPending, job.Status)
}

func TestGetStats(t *testing.T) {
	service, _, _, recipients := newServiceEnv(segmentedCampaign())
	recipients.seed(model.Recipient{CampaignID: 10, WaID: "254711000001", Status: model.RecipientSent})
	recipients.seed(model.Recipient{CampaignID: 10, WaID: "254711000002", Status: model.RecipientDelivered})
	recipients.seed(model.Recipient{CampaignID: 10, WaID: "254711000003", Status: model.RecipientPending})
	recipients.seed(model.Recipient{CampaignID: 99, WaID: "254711000004", Status: model.RecipientSent})

	stats, err := service.GetStats(10)
	require.NoError(t, err)
	assert.Equal(t, 10, stats.CampaignID)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.RecipientSent])
	assert.Equal(t, 1, stats.ByStatus[model.RecipientDelivered])
	assert.Equal(t, 1, stats.ByStatus[model.RecipientPending])
	assert.Equal(t, 0, stats.ByStatus[model.RecipientFailed])

	_, err = service.GetStats(999)
	assert.Error(t, err)
}
