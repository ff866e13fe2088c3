package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/metrics"
	"tipwall/internal/repository"

	"github.com/sirupsen/logrus"
)

// Sweep actions, used in reports and metrics.
const (
	SweepRefund    = "refund"
	SweepReconcile = "reconcile"
	SweepExpire    = "expire"
)

type SweepItem struct {
	TipID  string `json:"tip_id"`
	Action string `json:"action"`
	Err    string `json:"error"`
}

type SweepReport struct {
	Refunded   int         `json:"refunded"`
	Reconciled int         `json:"reconciled"`
	Expired    int         `json:"expired"`
	Pending    int         `json:"pending"`
	Failed     []SweepItem `json:"failed"`
}

type SweepOptions struct {
	BatchSize      int
	ExpireUnfunded bool
	Metrics        *metrics.Metrics
	Logger         logrus.FieldLogger
	Now            func() time.Time
}

// SweepService refunds funded tips past their deadline and finishes any
// settlement left in flight.
type SweepService struct {
	tips       *repository.TipRepository
	settlement *SettlementService
	batchSize  int
	expire     bool
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewSweepService(tips *repository.TipRepository, settlement *SettlementService, opts SweepOptions) *SweepService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SweepService{
		tips:       tips,
		settlement: settlement,
		batchSize:  opts.BatchSize,
		expire:     opts.ExpireUnfunded,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		now:        opts.Now,
	}
}

// Run performs one sweep. Only a failure to list expired funded tips is
// returned as an error; per-tip failures are collected in the report.
func (s *SweepService) Run(ctx context.Context) (*SweepReport, error) {
	now := s.now().UTC()
	report := &SweepReport{Failed: []SweepItem{}}
	handled := make(map[string]struct{})

	expired, err := s.tips.ListExpired(ctx, now, s.batchSize, domain.TipStatusFunded)
	if err != nil {
		return nil, fmt.Errorf("list expired tips: %w", err)
	}
	for i := range expired {
		tip := &expired[i]
		handled[tip.ID] = struct{}{}
		_, err := s.settlement.Refund(ctx, tip)
		s.record(report, tip.ID, SweepRefund, err, &report.Refunded)
	}

	settling, err := s.tips.ListByStatus(ctx, s.batchSize, domain.TipStatusReleasing, domain.TipStatusRefunding)
	if err != nil {
		report.Failed = append(report.Failed, SweepItem{Action: SweepReconcile, Err: err.Error()})
		s.log.WithError(err).Error("[Sweep] List settling tips failed")
	}
	for i := range settling {
		tip := &settling[i]
		if _, ok := handled[tip.ID]; ok {
			continue
		}
		handled[tip.ID] = struct{}{}
		_, err := s.settlement.Resume(ctx, tip)
		s.record(report, tip.ID, SweepReconcile, err, &report.Reconciled)
	}

	if s.expire {
		s.expireUnfunded(ctx, now, report)
	}

	s.log.WithFields(logrus.Fields{
		"refunded":   report.Refunded,
		"reconciled": report.Reconciled,
		"expired":    report.Expired,
		"pending":    report.Pending,
		"failed":     len(report.Failed),
	}).Info("[Sweep] Run complete")
	return report, nil
}

func (s *SweepService) expireUnfunded(ctx context.Context, now time.Time, report *SweepReport) {
	stale, err := s.tips.ListExpired(ctx, now, s.batchSize, domain.TipStatusAwaitingPayment)
	if err != nil {
		report.Failed = append(report.Failed, SweepItem{Action: SweepExpire, Err: err.Error()})
		s.log.WithError(err).Error("[Sweep] List unfunded tips failed")
		return
	}
	for _, tip := range stale {
		err := s.tips.Transition(ctx, tip.ID, domain.TipStatusAwaitingPayment, domain.TipStatusExpired, map[string]any{"settled_at": now})
		if errors.Is(err, repository.ErrStatusConflict) {
			// Funded by a late webhook; the next run refunds it if needed.
			continue
		}
		s.record(report, tip.ID, SweepExpire, err, &report.Expired)
	}
}

func (s *SweepService) record(report *SweepReport, tipID, action string, err error, counter *int) {
	switch {
	case err == nil:
		*counter++
		s.metrics.SweepItem(action, true)
	case errors.Is(err, ErrSettlementPending):
		report.Pending++
	case errors.Is(err, repository.ErrStatusConflict):
		// Claimed by a concurrent answer or decline.
	default:
		report.Failed = append(report.Failed, SweepItem{TipID: tipID, Action: action, Err: err.Error()})
		s.metrics.SweepItem(action, false)
		s.log.WithError(err).WithFields(logrus.Fields{"tip_id": tipID, "action": action}).Error("[Sweep] Item failed")
	}
}
