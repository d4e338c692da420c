package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"teamleave/internal/domain/leave"
	"teamleave/internal/platform/config"
	"teamleave/internal/platform/querier"
)

const JobLeaveCarryOver = "leave_carry_over"

type Service struct {
	DB         querier.Querier
	LeaveStore leave.StoreAPI
	Cfg        config.Config
	Now        func() time.Time
	queue      chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier, leaveStore leave.StoreAPI, cfg config.Config) *Service {
	return &Service{
		DB:         db,
		LeaveStore: leaveStore,
		Cfg:        cfg,
		Now:        time.Now,
		queue:      make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.CarryOverInterval > 0 {
		go s.scheduleCarryOver(ctx, s.Cfg.CarryOverInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// CarryOver returns the job body that carries unused days into year.
func (s *Service) CarryOver(year int) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return leave.ApplyCarryOver(ctx, s.LeaveStore, year, s.Cfg.SubtractPending)
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
      INSERT INTO job_runs (job_type, status)
      VALUES ($1,$2)
      RETURNING id
    `, j.Type, "running").Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// scheduleCarryOver re-applies the current year's carry-over on every tick.
// The computation overwrites, so repeated runs converge on the same values.
func (s *Service) scheduleCarryOver(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobLeaveCarryOver, s.CarryOver(s.Now().Year()))
		}
	}
}
