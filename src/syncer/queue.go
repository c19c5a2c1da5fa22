package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"ticketwallet/src/chain"
	"ticketwallet/src/config"
	"ticketwallet/src/db"
	"ticketwallet/src/lib"
	"ticketwallet/src/models"
	"ticketwallet/src/types"
	"ticketwallet/src/utils"
)

// Minter is the slice of the engine the queue drives. Tests substitute a fake.
type Minter interface {
	MintIfEligible(ctx context.Context, ticketID uuid.UUID) (*MintOutcome, error)
	ProcessAllPending(ctx context.Context) error
}

// Queue wires the engine into the shared scheduler: a periodic sweep that
// guarantees eventual minting, plus durable one-time per-ticket jobs that mint
// promptly near eligibility. Both can fire for the same ticket; the engine's
// conditional commit makes that safe.
type Queue struct {
	minter   Minter
	dlq      *DLQ
	retryCfg *utils.RetryConfig
}

func NewQueue(minter Minter, dlq *DLQ) *Queue {
	return &Queue{
		minter:   minter,
		dlq:      dlq,
		retryCfg: utils.DefaultRetryConfig(),
	}
}

// StartSweep registers the recurring sweep job.
func (q *Queue) StartSweep() error {
	interval := config.SweepInterval()
	_, err := lib.CreateCronJob(q.runSweep, interval)
	if err != nil {
		return err
	}
	log.Printf("[queue] Sync sweep scheduled every %s\n", interval)
	return nil
}

func (q *Queue) runSweep() {
	if err := q.minter.ProcessAllPending(context.Background()); err != nil {
		log.Printf("[queue] Sweep pass failed: %s\n", err.Error())
	}
}

// ScheduleTicketMint persists a JobTask row and registers a one-time job for
// the ticket. The job runs shortly after the owning event ends, or right away
// when the event has no end date. This is a latency optimization only; the
// sweep remains the source of truth for eventual minting.
func (q *Queue) ScheduleTicketMint(ticketID uuid.UUID, event *models.Event) (*uuid.UUID, error) {
	runsAt := time.Now()
	if event != nil && event.EndDate != nil {
		runsAt = event.EndDate.Add(config.MintDelayAfterEventEnd())
	}

	jobTask := models.JobTask{
		Name:     "mint-ticket",
		TicketID: ticketID,
		RunsAt:   runsAt,
	}
	conn := db.GetDb()
	if err := conn.Create(&jobTask).Error; err != nil {
		return nil, err
	}

	if _, err := lib.CreateOneTimeJob(runsAt, q.runTicketJob, jobTask.ID, ticketID); err != nil {
		log.Printf("[queue] Failed to register job %s for ticket %s: %s\n", jobTask.ID, ticketID, err.Error())
		return nil, err
	}
	log.Printf("[queue] Ticket %s scheduled for minting at %s (job %s)\n", ticketID, runsAt.Format(config.TIME_PARSE_FORMAT), jobTask.ID)
	return &jobTask.ID, nil
}

// RecoverPendingJobs re-registers JobTask rows left pending by a previous
// process. Rows whose run time has passed execute immediately.
func (q *Queue) RecoverPendingJobs() error {
	conn := db.GetDb()
	var jobTasks []models.JobTask
	err := conn.
		Where(&models.JobTask{Status: types.JOB_PENDING}).
		Order("runs_at asc").
		Limit(100).
		Find(&jobTasks).
		Error
	if err != nil {
		log.Printf("[queue] Error retrieving pending jobs: %s\n", err.Error())
		return err
	}
	log.Printf("[queue] Found %d pending mint jobs\n", len(jobTasks))
	for _, jobTask := range jobTasks {
		if _, err := lib.CreateOneTimeJob(jobTask.RunsAt, q.runTicketJob, jobTask.ID, jobTask.TicketID); err != nil {
			log.Printf("[queue] Failed to recover job %s. Skipping: %s\n", jobTask.ID, err.Error())
			continue
		}
		log.Printf("[queue] Recovered job %s for ticket %s\n", jobTask.ID, jobTask.TicketID)
	}
	return nil
}

// permanentJobError reports failures that repeat identically on retry:
// configuration problems and deterministic contract rejections. These go
// straight to the DLQ instead of burning retry attempts.
func permanentJobError(err error) bool {
	return errors.Is(err, ErrTicketNotFound) ||
		errors.Is(err, ErrChainNotConfigured) ||
		errors.Is(err, chain.ErrContractNotDeployed) ||
		errors.Is(err, chain.ErrNotContractOwner) ||
		errors.Is(err, chain.ErrTransactionReverted)
}

// runTicketJob executes one per-ticket mint with bounded retries. A
// not-yet-eligible outcome is a soft result: the job defers to the sweep
// rather than consuming the retry budget.
func (q *Queue) runTicketJob(jobID uuid.UUID, ticketID uuid.UUID) {
	ctx := context.Background()
	var deferredToSweep bool

	result := utils.Retry(ctx, q.retryCfg, func(ctx context.Context) error {
		outcome, err := q.minter.MintIfEligible(ctx, ticketID)
		if err != nil {
			if permanentJobError(err) {
				return utils.Permanent(err)
			}
			return err
		}
		if outcome.Kind == OutcomeNotYetEligible {
			deferredToSweep = true
			log.Printf("[queue] Ticket %s not ready yet: %s, leaving it to the sweep\n", ticketID, outcome.Reason)
		}
		return nil
	})

	if result.Err == nil {
		status := types.JOB_COMPLETED
		if deferredToSweep {
			status = types.JOB_DEFERRED
		}
		q.finishJob(jobID, status, result.Attempts, nil)
		return
	}

	errMsg := result.Err.Error()
	if result.LastError != nil {
		errMsg = result.LastError.Error()
	}
	log.Printf("[queue] Mint job %s for ticket %s failed after %d attempts: %s\n", jobID, ticketID, result.Attempts, errMsg)
	q.finishJob(jobID, types.JOB_FAILED, result.Attempts, &errMsg)

	if err := q.dlq.Push(ctx, &DLQMessage{
		JobID:    jobID.String(),
		TicketID: ticketID.String(),
		Error:    errMsg,
		Attempts: result.Attempts,
	}); err != nil {
		log.Printf("[queue] Failed to park job %s in DLQ: %s\n", jobID, err.Error())
	}
}

func (q *Queue) finishJob(jobID uuid.UUID, status types.JobStatus, attempts int, lastError *string) {
	conn := db.GetDb()
	err := conn.Model(&models.JobTask{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
		}).
		Error
	if err != nil {
		log.Printf("[queue] Error updating job %s: %s\n", jobID, err.Error())
	}
}
