// internal/broadcast/worker.go
package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sasaflow/wabroadcast/internal/events"
	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// Worker polls for claimable broadcast jobs and drives the batch-send loop
// for whichever job it wins. Any number of worker processes may run this
// loop concurrently; the job row's conditional claim is the only mutual
// exclusion between them.
type Worker struct {
	ID               string
	PollInterval     time.Duration
	BatchSize        int
	StaleLockTimeout time.Duration

	Jobs         repository.JobRepositoryInterface
	Campaigns    repository.CampaignRepositoryInterface
	Recipients   repository.RecipientRepositoryInterface
	Templates    repository.TemplateRepositoryInterface
	Materializer *Materializer
	Sender       *ThrottledSender
	Events       events.Publisher
	Log          zerolog.Logger
}

// NewWorkerID returns an opaque lock-holder identity for one worker process.
func NewWorkerID() string {
	return "worker-" + uuid.NewString()
}

// Run polls until the context is cancelled. One claim attempt per tick; a
// claimed job is drained to completion, pause, or failure before the next
// tick considers a new one.
func (w *Worker) Run(ctx context.Context) {
	w.Log.Info().
		Str("worker_id", w.ID).
		Dur("poll_interval", w.PollInterval).
		Int("batch_size", w.BatchSize).
		Msg("broadcast worker started")

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Log.Info().Str("worker_id", w.ID).Msg("broadcast worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.Log.Error().Err(err).Str("worker_id", w.ID).Msg("poll tick failed")
			}
		}
	}
}

// RunOnce makes a single claim attempt. Losing the claim race is silent;
// a claimed job that errors is marked failed on both the job and campaign.
func (w *Worker) RunOnce(ctx context.Context) error {
	job, err := w.Jobs.ClaimNext(w.ID, w.StaleLockTimeout)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	log := w.Log.With().Str("worker_id", w.ID).Int("job_id", job.ID).Int("campaign_id", job.CampaignID).Logger()
	log.Info().Msg("claimed broadcast job")

	if err := w.runJob(ctx, job, log); err != nil {
		log.Error().Err(err).Msg("broadcast job failed")
		if ferr := w.Jobs.Fail(job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to mark job failed")
		}
		if ferr := w.Campaigns.MarkFailed(job.CampaignID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to mark campaign failed")
		}
		publishCampaignEvent(w.Events, log, events.CampaignFailed, job.CampaignID, err.Error())
	}
	return nil
}

func (w *Worker) runJob(ctx context.Context, job *model.BroadcastJob, log zerolog.Logger) error {
	campaign, err := w.Campaigns.GetByID(job.CampaignID)
	if err != nil {
		return err
	}
	tmpl, err := w.Templates.GetByID(campaign.TemplateID)
	if err != nil {
		return err
	}
	if tmpl == nil {
		return fmt.Errorf("template %d not found", campaign.TemplateID)
	}

	total, err := w.Materializer.Populate(campaign)
	if err != nil {
		return err
	}
	if err := w.Campaigns.MarkStarted(campaign.ID, total); err != nil {
		return err
	}
	publishCampaignEvent(w.Events, log, events.CampaignStarted, campaign.ID, "")

	for {
		// Pause is polled here, at batch boundaries only.
		current, err := w.Jobs.GetByID(job.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("job %d disappeared mid-run", job.ID)
		}
		if current.Status == model.JobPaused {
			log.Info().Int("progress", current.Progress).Msg("broadcast job paused")
			return nil
		}

		batch, err := w.Recipients.FetchPendingBatch(campaign.ID, w.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return w.finishJob(job, campaign, log)
		}

		for _, rec := range batch {
			if ctx.Err() != nil {
				// Shutting down mid-batch: leave the lock in place; another
				// worker reclaims it once it goes stale.
				log.Warn().Msg("shutdown mid-batch, leaving job for stale-lock reclaim")
				return nil
			}
			if err := w.Sender.SendTo(ctx, campaign, tmpl, rec); err != nil {
				return err
			}
		}

		if err := w.Jobs.RenewLock(job.ID, len(batch)); err != nil {
			return err
		}
	}
}

// finishJob marks the drained campaign complete. Final counters are
// recomputed from recipient rows, not the incremental counts.
func (w *Worker) finishJob(job *model.BroadcastJob, campaign *model.Campaign, log zerolog.Logger) error {
	counts, err := w.Recipients.StatusCounts(campaign.ID)
	if err != nil {
		return err
	}
	if err := w.Campaigns.FinalizeCounters(campaign.ID, counts); err != nil {
		return err
	}
	if err := w.Jobs.Complete(job.ID); err != nil {
		return err
	}
	if err := w.Campaigns.MarkCompleted(campaign.ID); err != nil {
		return err
	}
	publishCampaignEvent(w.Events, log, events.CampaignCompleted, campaign.ID, "")

	log.Info().
		Int("sent", counts[model.RecipientSent]+counts[model.RecipientDelivered]+counts[model.RecipientRead]).
		Int("failed", counts[model.RecipientFailed]).
		Msg("broadcast job completed")
	return nil
}
