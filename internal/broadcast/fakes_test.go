package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/sasaflow/wabroadcast/internal/apperrors"
	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// In-memory fakes mirroring the repository semantics. The job fake performs
// its test-and-set under one mutex, the same atomicity the conditional
// UPDATE gives the real repository.

type fakeJobRepo struct {
	mu     sync.Mutex
	jobs   map[int]*model.BroadcastJob
	nextID int
	now    func() time.Time
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[int]*model.BroadcastJob{}, nextID: 1, now: time.Now}
}

func (f *fakeJobRepo) GetByID(id int) (*model.BroadcastJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *j
	return &copied, nil
}

func (f *fakeJobRepo) GetByCampaignID(campaignID int) (*model.BroadcastJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.CampaignID == campaignID {
			copied := *j
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeJobRepo) Reset(campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.CampaignID == campaignID {
			j.Status = model.JobPending
			j.Progress = 0
			j.LockedAt = nil
			j.LockedBy = ""
			j.LastError = ""
			j.UpdatedAt = f.now()
			return nil
		}
	}
	f.jobs[f.nextID] = &model.BroadcastJob{
		ID:         f.nextID,
		CampaignID: campaignID,
		Status:     model.JobPending,
		CreatedAt:  f.now(),
		UpdatedAt:  f.now(),
	}
	f.nextID++
	return nil
}

func (f *fakeJobRepo) ClaimNext(workerID string, staleTimeout time.Duration) (*model.BroadcastJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	staleBefore := now.Add(-staleTimeout)

	ids := make([]int, 0, len(f.jobs))
	for id := range f.jobs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		return f.jobs[ids[a]].CreatedAt.Before(f.jobs[ids[b]].CreatedAt)
	})

	for _, id := range ids {
		j := f.jobs[id]
		eligible := j.Status == model.JobPending ||
			(j.Status == model.JobRunning && j.LockedAt != nil && j.LockedAt.Before(staleBefore))
		if !eligible {
			continue
		}
		// Test-and-set, same predicate as the selection.
		if j.LockedAt != nil && !j.LockedAt.Before(staleBefore) {
			return nil, nil
		}
		locked := now
		j.Status = model.JobRunning
		j.LockedAt = &locked
		j.LockedBy = workerID
		copied := *j
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeJobRepo) RenewLock(id int, processed int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	locked := f.now()
	j.LockedAt = &locked
	j.Progress += processed
	return nil
}

func (f *fakeJobRepo) Pause(campaignID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.CampaignID == campaignID && j.Status == model.JobRunning {
			j.Status = model.JobPaused
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) Resume(campaignID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.jobs {
		if j.CampaignID == campaignID && j.Status == model.JobPaused {
			j.Status = model.JobPending
			j.LockedAt = nil
			j.LockedBy = ""
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) Complete(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.Status = model.JobCompleted
		j.LockedAt = nil
		j.LockedBy = ""
	}
	return nil
}

func (f *fakeJobRepo) Fail(id int, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.Status = model.JobFailed
		j.LastError = lastError
		j.LockedAt = nil
		j.LockedBy = ""
	}
	return nil
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[int]*model.Campaign
}

func newFakeCampaignRepo(campaigns ...*model.Campaign) *fakeCampaignRepo {
	repo := &fakeCampaignRepo{campaigns: map[int]*model.Campaign{}}
	for _, c := range campaigns {
		repo.campaigns[c.ID] = c
	}
	return repo
}

func (f *fakeCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	copied := *c
	return &copied, nil
}

func (f *fakeCampaignRepo) UpdateStatus(campaignID int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = status
	}
	return nil
}

func (f *fakeCampaignRepo) MarkScheduled(campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = model.CampaignScheduled
		c.ErrorMessage = ""
	}
	return nil
}

func (f *fakeCampaignRepo) MarkStarted(campaignID int, totalRecipients int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = model.CampaignRunning
		c.TotalRecipients = totalRecipients
		if c.StartedAt == nil {
			now := time.Now()
			c.StartedAt = &now
		}
	}
	return nil
}

func (f *fakeCampaignRepo) MarkCompleted(campaignID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = model.CampaignCompleted
		now := time.Now()
		c.CompletedAt = &now
	}
	return nil
}

func (f *fakeCampaignRepo) MarkFailed(campaignID int, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = model.CampaignFailed
		c.ErrorMessage = errorMessage
	}
	return nil
}

func (f *fakeCampaignRepo) IncrementCounter(campaignID int, counter string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	switch counter {
	case "sent":
		c.SentCount++
	case "failed":
		c.FailedCount++
	case "delivered":
		c.DeliveredCount++
	case "read":
		c.ReadCount++
	default:
		return fmt.Errorf("unknown counter %q", counter)
	}
	return nil
}

func (f *fakeCampaignRepo) FinalizeCounters(campaignID int, counts map[string]int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	read := counts[model.RecipientRead]
	delivered := counts[model.RecipientDelivered] + read
	sent := counts[model.RecipientSent] + delivered
	c.ReadCount = read
	c.DeliveredCount = delivered
	c.SentCount = sent
	c.FailedCount = counts[model.RecipientFailed]
	c.TotalRecipients = sent + c.FailedCount + counts[model.RecipientPending]
	return nil
}

type fakeRecipientRepo struct {
	mu         sync.Mutex
	recipients map[int]*model.Recipient
	nextID     int
}

func newFakeRecipientRepo() *fakeRecipientRepo {
	return &fakeRecipientRepo{recipients: map[int]*model.Recipient{}, nextID: 1}
}

func (f *fakeRecipientRepo) BulkInsert(recipients []model.Recipient) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inserted := 0
	for _, rec := range recipients {
		duplicate := false
		for _, existing := range f.recipients {
			if existing.CampaignID == rec.CampaignID && existing.WaID == rec.WaID {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		rec.ID = f.nextID
		rec.Status = model.RecipientPending
		f.nextID++
		stored := rec
		f.recipients[stored.ID] = &stored
		inserted++
	}
	return inserted, nil
}

func (f *fakeRecipientRepo) CountByCampaign(campaignID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRecipientRepo) FetchPendingBatch(campaignID, limit int) ([]model.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.recipients))
	for id, rec := range f.recipients {
		if rec.CampaignID == campaignID && rec.Status == model.RecipientPending {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	batch := []model.Recipient{}
	for _, id := range ids {
		if len(batch) == limit {
			break
		}
		batch = append(batch, *f.recipients[id])
	}
	return batch, nil
}

func (f *fakeRecipientRepo) MarkSent(id int, providerMessageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[id]
	if !ok {
		return fmt.Errorf("recipient %d not found", id)
	}
	now := time.Now()
	rec.Status = model.RecipientSent
	rec.ProviderMessageID = providerMessageID
	rec.SentAt = &now
	return nil
}

func (f *fakeRecipientRepo) MarkFailed(id int, sendError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[id]
	if !ok {
		return fmt.Errorf("recipient %d not found", id)
	}
	now := time.Now()
	rec.Status = model.RecipientFailed
	rec.Error = sendError
	rec.FailedAt = &now
	return nil
}

func (f *fakeRecipientRepo) FindByProviderMessageID(providerMessageID string) (*model.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recipients {
		if rec.ProviderMessageID == providerMessageID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRecipientRepo) TransitionStatus(id int, from, to string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[id]
	if !ok || rec.Status != from {
		return false, nil
	}
	rec.Status = to
	switch to {
	case model.RecipientSent:
		rec.SentAt = &at
	case model.RecipientDelivered:
		rec.DeliveredAt = &at
	case model.RecipientRead:
		rec.ReadAt = &at
	case model.RecipientFailed:
		rec.FailedAt = &at
	}
	return true, nil
}

func (f *fakeRecipientRepo) StatusCounts(campaignID int) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{
		model.RecipientPending:   0,
		model.RecipientSent:      0,
		model.RecipientDelivered: 0,
		model.RecipientRead:      0,
		model.RecipientFailed:    0,
	}
	for _, rec := range f.recipients {
		if rec.CampaignID == campaignID {
			counts[rec.Status]++
		}
	}
	return counts, nil
}

// seed inserts a recipient row directly, bypassing materialization.
func (f *fakeRecipientRepo) seed(rec model.Recipient) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = f.nextID
	f.nextID++
	stored := rec
	f.recipients[stored.ID] = &stored
	return stored.ID
}

func (f *fakeRecipientRepo) get(id int) model.Recipient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.recipients[id]
}

type fakeTemplateRepo struct {
	templates map[int]*model.Template
}

func (f *fakeTemplateRepo) GetByID(id int) (*model.Template, error) {
	t, ok := f.templates[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

type fakeSegmentRepo struct {
	segments map[int]*model.Segment
}

func (f *fakeSegmentRepo) GetByID(id int) (*model.Segment, error) {
	s, ok := f.segments[id]
	if !ok {
		return nil, appErrors.NewSegmentNotFound(id)
	}
	copied := *s
	return &copied, nil
}

func (f *fakeSegmentRepo) UpdateEstimatedCount(id, count int) error {
	if s, ok := f.segments[id]; ok {
		s.EstimatedCount = count
	}
	return nil
}

type fakeSourceRepo struct {
	conversations []model.Conversation
	contacts      []model.Contact
	imports       []model.ImportedContact
}

func (f *fakeSourceRepo) Conversations(repository.SourceFilter) ([]model.Conversation, error) {
	return f.conversations, nil
}

func (f *fakeSourceRepo) Contacts(repository.SourceFilter) ([]model.Contact, error) {
	return f.contacts, nil
}

func (f *fakeSourceRepo) ImportedContacts(repository.SourceFilter) ([]model.ImportedContact, error) {
	return f.imports, nil
}

// fakeProvider records sends and can fail or panic on selected addresses.
type fakeProvider struct {
	mu      sync.Mutex
	sent    []string
	failOn  map[string]error
	panicOn map[string]bool
	onSend  func(waID string)
	nextID  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{failOn: map[string]error{}, panicOn: map[string]bool{}}
}

func (f *fakeProvider) Send(_ context.Context, waID, _, _ string, _ []string) (string, error) {
	f.mu.Lock()
	onSend := f.onSend
	if f.panicOn[waID] {
		f.mu.Unlock()
		panic("provider exploded on " + waID)
	}
	if err, ok := f.failOn[waID]; ok {
		f.mu.Unlock()
		return "", err
	}
	f.sent = append(f.sent, waID)
	f.nextID++
	id := fmt.Sprintf("wamid-%d", f.nextID)
	f.mu.Unlock()

	if onSend != nil {
		onSend(waID)
	}
	return id, nil
}

func (f *fakeProvider) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
