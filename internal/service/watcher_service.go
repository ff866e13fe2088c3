package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"tipwall/internal/dedupe"
	"tipwall/internal/domain"
	"tipwall/internal/metrics"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/pkg/solana"

	"github.com/sirupsen/logrus"
)

// Webhook event outcomes.
const (
	OutcomeFunded    = "funded"
	OutcomeIgnored   = "ignored"   // no transfer into the vault
	OutcomeNoMatch   = "no_match"  // no referenced account is a tip reference
	OutcomeDuplicate = "duplicate" // tip already past awaiting_payment
	OutcomeUnderpaid = "underpaid"
	OutcomeError     = "error"
)

type EventResult struct {
	Signature string `json:"signature"`
	Outcome   string `json:"outcome"`
	TipIDs    []string `json:"tip_ids,omitempty"` // tips funded by the event, or matched when none were
	Err       string `json:"error,omitempty"`
}

type BatchResult struct {
	Results   []EventResult `json:"results"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
}

// WatcherService matches inbound vault payments to tips by reference key.
type WatcherService struct {
	tips     *repository.TipRepository
	vault    string
	dedupe   dedupe.Store
	notifier *NotificationService
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewWatcherService(tips *repository.TipRepository, vault string, store dedupe.Store, notifier *NotificationService, m *metrics.Metrics, log logrus.FieldLogger) *WatcherService {
	return &WatcherService{
		tips:     tips,
		vault:    vault,
		dedupe:   store,
		notifier: notifier,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Process handles every event independently; one failing event never stops
// the rest of the batch.
func (s *WatcherService) Process(ctx context.Context, events []solana.EnhancedTransaction) BatchResult {
	var out BatchResult
	for i := range events {
		ev := &events[i]
		res := s.processOne(ctx, ev)
		out.Results = append(out.Results, res)
		if res.Outcome == OutcomeError {
			out.Failed++
		} else {
			out.Processed++
		}
		s.metrics.WebhookEvent(res.Outcome)

		entry := s.log.WithFields(logrus.Fields{"signature": res.Signature, "outcome": res.Outcome, "tip_ids": res.TipIDs})
		switch res.Outcome {
		case OutcomeError:
			entry.WithField("error", res.Err).Error("[Watcher] Event failed")
		case OutcomeUnderpaid:
			entry.Warn("[Watcher] Underpaid tip")
		case OutcomeFunded:
			entry.Info("[Watcher] Tip funded")
		default:
			entry.Debug("[Watcher] Event skipped")
		}
	}
	return out
}

func (s *WatcherService) processOne(ctx context.Context, ev *solana.EnhancedTransaction) EventResult {
	res := EventResult{Signature: ev.Signature}

	if s.dedupe != nil && ev.Signature != "" {
		seen, err := s.dedupe.Seen(ctx, ev.Signature)
		if err != nil {
			s.log.WithError(err).Warn("[Watcher] Dedupe lookup failed, falling back to status guard")
		} else if seen {
			res.Outcome = OutcomeDuplicate
			return res
		}
	}

	res.Outcome = s.match(ctx, ev, &res)
	if res.Outcome != OutcomeError && s.dedupe != nil && ev.Signature != "" {
		if err := s.dedupe.Mark(ctx, ev.Signature); err != nil {
			s.log.WithError(err).Warn("[Watcher] Dedupe mark failed")
		}
	}
	return res
}

// match funds every awaiting tip the event references. One transaction can
// pay several tips, so each candidate draws from the lamports not yet
// claimed by an earlier tip in the same event.
func (s *WatcherService) match(ctx context.Context, ev *solana.EnhancedTransaction, res *EventResult) string {
	if !ev.PaysTo(s.vault) {
		return OutcomeIgnored
	}
	unclaimed := ev.InboundTo(s.vault)
	var funded, matched []string
	var underpaid, duplicate bool
	var errs []string
	for _, ref := range ev.ReferencedAccounts() {
		if ref == s.vault {
			continue
		}
		tip, err := s.tips.GetByReference(ctx, ref)
		if errors.Is(err, repository.ErrTipNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		matched = append(matched, tip.ID)
		outcome, err := s.fund(ctx, ev, tip, unclaimed)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		switch outcome {
		case OutcomeFunded:
			unclaimed -= tip.AmountLamports
			funded = append(funded, tip.ID)
		case OutcomeUnderpaid:
			underpaid = true
		case OutcomeDuplicate:
			duplicate = true
		}
	}

	if len(funded) > 0 {
		res.TipIDs = funded
	} else {
		res.TipIDs = matched
	}
	switch {
	case len(errs) > 0:
		// Not marked as seen, so a redelivery retries the failed tips; the
		// status guard turns the already funded ones into duplicates.
		res.Err = strings.Join(errs, "; ")
		return OutcomeError
	case len(funded) > 0:
		return OutcomeFunded
	case underpaid:
		return OutcomeUnderpaid
	case duplicate:
		return OutcomeDuplicate
	}
	return OutcomeNoMatch
}

// fund moves tip to funded when available covers its amount.
func (s *WatcherService) fund(ctx context.Context, ev *solana.EnhancedTransaction, tip *models.Tip, available uint64) (string, error) {
	if tip.Status != domain.TipStatusAwaitingPayment {
		return OutcomeDuplicate, nil
	}
	if available < tip.AmountLamports {
		return OutcomeUnderpaid, nil
	}
	now := s.now().UTC()
	err := s.tips.Transition(ctx, tip.ID, domain.TipStatusAwaitingPayment, domain.TipStatusFunded, map[string]any{
		"tx_fund_sig": ev.Signature,
		"funded_at":   now,
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	tip.Status = domain.TipStatusFunded
	tip.TxFundSig = ev.Signature
	tip.FundedAt = &now
	if err := s.notifier.NotifyTipFunded(ctx, tip); err != nil {
		s.log.WithError(err).WithField("tip_id", tip.ID).Warn("[Watcher] Notify failed")
	}
	return OutcomeFunded, nil
}
