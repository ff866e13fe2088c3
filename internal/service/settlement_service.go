package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/fees"
	"tipwall/internal/metrics"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/pkg/solana"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettlementService moves money out of the vault for claimed tips.
//
// A tip is claimed (funded -> releasing or funded -> refunding) in the same
// database transaction that records its planned transfers. Each transfer is
// then signed, its signature stored, and only then broadcast. Any run that
// finds a claimed tip, including the expiry sweep, can finish it by checking
// stored signatures against the cluster before sending anything again.
type SettlementService struct {
	db            *gorm.DB
	tips          *repository.TipRepository
	answers       *repository.AnswerRepository
	transfers     *repository.TransferRepository
	users         *repository.UserRepository
	wallet        solana.Wallet
	feeAddress    string
	resubmitAfter time.Duration
	notifier      *NotificationService
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	now           func() time.Time
}

type SettlementOptions struct {
	// FeeAddress receives platform fees. Defaults to the vault itself.
	FeeAddress string
	// ResubmitAfter is how long a submitted transfer may stay unseen by the
	// cluster before it is treated as dropped. It must exceed the blockhash
	// lifetime so a dropped transaction can no longer land.
	ResubmitAfter time.Duration
	Notifier      *NotificationService
	Metrics       *metrics.Metrics
	Logger        logrus.FieldLogger
	Now           func() time.Time
}

func NewSettlementService(db *gorm.DB, wallet solana.Wallet, opts SettlementOptions) *SettlementService {
	if opts.FeeAddress == "" {
		opts.FeeAddress = wallet.Address()
	}
	if opts.ResubmitAfter <= 0 {
		opts.ResubmitAfter = 2 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SettlementService{
		db:            db,
		tips:          repository.NewTipRepository(db),
		answers:       repository.NewAnswerRepository(db),
		transfers:     repository.NewTransferRepository(db),
		users:         repository.NewUserRepository(db),
		wallet:        wallet,
		feeAddress:    opts.FeeAddress,
		resubmitAfter: opts.ResubmitAfter,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		now:           opts.Now,
	}
}

// SettleResult reports the final signatures of a settled tip.
type SettleResult struct {
	TipID      string `json:"tip_id"`
	Status     string `json:"status"`
	ReleaseSig string `json:"release_sig,omitempty"`
	FeeSig     string `json:"fee_sig,omitempty"`
	RefundSig  string `json:"refund_sig,omitempty"`
}

// Answer stores the creator's answer and releases the tip to them minus the
// platform fee. Calling it again for a tip stuck in releasing resumes the
// payout without writing a second answer.
func (s *SettlementService) Answer(ctx context.Context, tipID string, creatorID uint, content string) (*SettleResult, error) {
	tip, err := s.tips.GetByID(ctx, tipID)
	if err != nil {
		return nil, err
	}
	if tip.CreatorID != creatorID {
		return nil, ErrNotOwner
	}
	if tip.Status == domain.TipStatusReleasing {
		return s.settle(ctx, tip)
	}
	if tip.Status != domain.TipStatusFunded {
		return nil, ErrNotFunded
	}
	if tip.Expired(s.now()) {
		return nil, ErrExpired
	}
	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !creator.CanReceivePayouts() {
		return nil, ErrCreatorWalletMissing
	}

	split := fees.SplitLamports(tip.AmountLamports, tip.FeeBps)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tips.WithTx(tx).Transition(ctx, tip.ID, domain.TipStatusFunded, domain.TipStatusReleasing, nil); err != nil {
			return err
		}
		if err := s.answers.WithTx(tx).Create(ctx, &models.Answer{TipID: tip.ID, CreatorID: creatorID, AnswerText: content}); err != nil {
			return err
		}
		transfers := s.transfers.WithTx(tx)
		if _, err := transfers.Ensure(ctx, tip.ID, domain.TransferKindPayout, creator.WalletAddress, split.Net); err != nil {
			return err
		}
		if split.Fee > 0 {
			if _, err := transfers.Ensure(ctx, tip.ID, domain.TransferKindFee, s.feeAddress, split.Fee); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tip.Status = domain.TipStatusReleasing
	s.log.WithFields(logrus.Fields{"tip_id": tip.ID, "net": split.Net, "fee": split.Fee}).Info("[Settlement] Claimed tip for release")
	return s.settle(ctx, tip)
}

// Decline refunds a funded tip the creator does not want to answer.
func (s *SettlementService) Decline(ctx context.Context, tipID string, creatorID uint) (*SettleResult, error) {
	tip, err := s.tips.GetByID(ctx, tipID)
	if err != nil {
		return nil, err
	}
	if tip.CreatorID != creatorID {
		return nil, ErrNotOwner
	}
	if tip.Status == domain.TipStatusRefunding {
		return s.settle(ctx, tip)
	}
	if tip.Status != domain.TipStatusFunded {
		return nil, ErrNotFunded
	}
	return s.Refund(ctx, tip)
}

// Refund claims a funded tip and returns the full amount to the payer.
func (s *SettlementService) Refund(ctx context.Context, tip *models.Tip) (*SettleResult, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.tips.WithTx(tx).Transition(ctx, tip.ID, domain.TipStatusFunded, domain.TipStatusRefunding, nil); err != nil {
			return err
		}
		_, err := s.transfers.WithTx(tx).Ensure(ctx, tip.ID, domain.TransferKindRefund, tip.TipperWallet, tip.AmountLamports)
		return err
	})
	if err != nil {
		return nil, err
	}
	tip.Status = domain.TipStatusRefunding
	s.log.WithFields(logrus.Fields{"tip_id": tip.ID, "lamports": tip.AmountLamports}).Info("[Settlement] Claimed tip for refund")
	return s.settle(ctx, tip)
}

// Resume finishes a tip left in releasing or refunding.
func (s *SettlementService) Resume(ctx context.Context, tip *models.Tip) (*SettleResult, error) {
	if tip.Status != domain.TipStatusReleasing && tip.Status != domain.TipStatusRefunding {
		return nil, fmt.Errorf("%w: %s is not being settled", repository.ErrInvalidTransition, tip.Status)
	}
	return s.settle(ctx, tip)
}

func (s *SettlementService) settle(ctx context.Context, tip *models.Tip) (*SettleResult, error) {
	start := s.now()
	list, err := s.transfers.ListByTip(ctx, tip.ID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("tip %s is %s but has no planned transfers", tip.ID, tip.Status)
	}
	sort.SliceStable(list, func(i, j int) bool { return kindOrder(list[i].Kind) < kindOrder(list[j].Kind) })

	pending := false
	for i := range list {
		t := &list[i]
		if err := s.execute(ctx, t); err != nil {
			return nil, fmt.Errorf("%s transfer for tip %s: %w", t.Kind, tip.ID, err)
		}
		if !t.Confirmed() {
			pending = true
		}
	}
	if pending {
		return nil, ErrSettlementPending
	}

	res := &SettleResult{TipID: tip.ID}
	fields := map[string]any{"settled_at": s.now().UTC()}
	for _, t := range list {
		switch t.Kind {
		case domain.TransferKindPayout:
			res.ReleaseSig = t.Signature
			fields["tx_release_sig"] = t.Signature
		case domain.TransferKindFee:
			res.FeeSig = t.Signature
			fields["tx_fee_sig"] = t.Signature
		case domain.TransferKindRefund:
			res.RefundSig = t.Signature
			fields["tx_refund_sig"] = t.Signature
		}
	}

	from := tip.Status
	to := domain.TipStatusReleased
	kind := "release"
	if from == domain.TipStatusRefunding {
		to = domain.TipStatusRefunded
		kind = "refund"
	}
	if err := s.tips.Transition(ctx, tip.ID, from, to, fields); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Another worker finished the same transfers first.
			res.Status = to
			return res, nil
		}
		return nil, err
	}
	tip.Status = to
	res.Status = to
	s.metrics.Settled(kind, s.now().Sub(start))
	s.log.WithFields(logrus.Fields{"tip_id": tip.ID, "status": to}).Info("[Settlement] Tip settled")

	var nerr error
	if to == domain.TipStatusReleased {
		nerr = s.notifier.NotifyTipReleased(ctx, tip)
	} else {
		nerr = s.notifier.NotifyTipRefunded(ctx, tip)
	}
	if nerr != nil {
		s.log.WithError(nerr).WithField("tip_id", tip.ID).Warn("[Settlement] Notify failed")
	}
	return res, nil
}

// execute drives one transfer forward. It returns nil when the transfer is
// confirmed or still legitimately in flight; callers check t.Status.
func (s *SettlementService) execute(ctx context.Context, t *models.Transfer) error {
	switch t.Status {
	case domain.TransferStatusConfirmed:
		return nil
	case domain.TransferStatusSubmitted:
		status, err := s.wallet.SignatureStatus(ctx, t.Signature)
		if err != nil {
			return fmt.Errorf("check signature %s: %w", t.Signature, err)
		}
		switch status {
		case solana.StatusConfirmed:
			return s.transfers.MarkConfirmed(ctx, t, s.now().UTC())
		case solana.StatusProcessed:
			return nil
		case solana.StatusFailed:
			if err := s.transfers.MarkFailed(ctx, t, solana.ErrTransactionFailed); err != nil {
				return busyIsInFlight(err)
			}
		default:
			if t.SubmittedAt != nil && s.now().Sub(*t.SubmittedAt) < s.resubmitAfter {
				return nil
			}
			if err := s.transfers.MarkFailed(ctx, t, fmt.Errorf("signature %s not found after %s", t.Signature, s.resubmitAfter)); err != nil {
				return busyIsInFlight(err)
			}
		}
	}
	return s.submit(ctx, t)
}

func (s *SettlementService) submit(ctx context.Context, t *models.Transfer) error {
	log := s.log.WithFields(logrus.Fields{"tip_id": t.TipID, "kind": t.Kind, "lamports": t.Lamports})

	signed, err := s.wallet.Sign(ctx, t.Destination, t.Lamports)
	if err != nil {
		s.metrics.Transfer(t.Kind, false)
		s.recordError(ctx, t, err)
		return err
	}
	if err := s.transfers.MarkSubmitted(ctx, t, signed.Signature, s.now().UTC()); err != nil {
		return busyIsInFlight(err)
	}

	err = s.wallet.Send(ctx, signed)
	switch {
	case err == nil:
		s.metrics.Transfer(t.Kind, true)
		log.WithField("signature", t.Signature).Info("[Settlement] Transfer confirmed")
		return s.transfers.MarkConfirmed(ctx, t, s.now().UTC())
	case errors.Is(err, solana.ErrConfirmationTimeout):
		log.WithField("signature", t.Signature).Warn("[Settlement] Transfer not yet confirmed")
		return nil
	case errors.Is(err, solana.ErrTransactionFailed):
		s.metrics.Transfer(t.Kind, false)
		log.WithError(err).Error("[Settlement] Transfer failed on chain")
		if merr := s.transfers.MarkFailed(ctx, t, err); merr != nil && !errors.Is(merr, repository.ErrTransferBusy) {
			return merr
		}
		return err
	default:
		// The transaction may still have reached the cluster, so the
		// signature stays submitted and is checked before any resend.
		s.metrics.Transfer(t.Kind, false)
		log.WithError(err).Error("[Settlement] Transfer send error")
		s.recordError(ctx, t, err)
		return err
	}
}

// busyIsInFlight maps ErrTransferBusy to nil: another worker owns the
// transfer now and the caller sees it as still in flight.
func busyIsInFlight(err error) error {
	if errors.Is(err, repository.ErrTransferBusy) {
		return nil
	}
	return err
}

func (s *SettlementService) recordError(ctx context.Context, t *models.Transfer, cause error) {
	if err := s.transfers.RecordError(ctx, t, cause); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"tip_id": t.TipID, "kind": t.Kind}).Warn("[Settlement] Record transfer error failed")
	}
}

func kindOrder(kind string) int {
	switch kind {
	case domain.TransferKindPayout, domain.TransferKindRefund:
		return 0
	default:
		return 1
	}
}
