package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tipwall/internal/domain"
	"tipwall/internal/fees"
	"tipwall/internal/models"
	"tipwall/internal/repository"
	"tipwall/pkg/solana"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TipService struct {
	tips          *repository.TipRepository
	answers       *repository.AnswerRepository
	users         *repository.UserRepository
	vaultAddress  string
	answerTimeout time.Duration
	log           logrus.FieldLogger
	now           func() time.Time
}

func NewTipService(tips *repository.TipRepository, answers *repository.AnswerRepository, users *repository.UserRepository, vaultAddress string, answerTimeout time.Duration, log logrus.FieldLogger) *TipService {
	if answerTimeout <= 0 {
		answerTimeout = 48 * time.Hour
	}
	return &TipService{
		tips:          tips,
		answers:       answers,
		users:         users,
		vaultAddress:  vaultAddress,
		answerTimeout: answerTimeout,
		log:           log,
		now:           time.Now,
	}
}

type CreateTipInput struct {
	CreatorHandle string
	AskerID       *uint
	TipperWallet  string
	AmountSOL     decimal.Decimal
	QuestionText  string
}

// CreatedTip is a new tip plus the payment request the payer's wallet opens.
type CreatedTip struct {
	Tip          *models.Tip
	SolanaPayURL string
}

// Create records a tip in awaiting_payment with a fresh reference key and
// the fee rate that will apply when it is released.
func (s *TipService) Create(ctx context.Context, in CreateTipInput) (*CreatedTip, error) {
	creator, err := s.users.GetByHandle(ctx, in.CreatorHandle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrCreatorNotFound
		}
		return nil, err
	}
	if !creator.CanReceivePayouts() {
		return nil, ErrCreatorWalletMissing
	}
	wallet := strings.TrimSpace(in.TipperWallet)
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, ErrInvalidWallet
	}
	lamports, err := fees.SOLToLamports(in.AmountSOL)
	if err != nil {
		return nil, err
	}
	if lamports < creator.PriceLamports {
		return nil, fmt.Errorf("%w: minimum is %s SOL", ErrBelowPrice, fees.LamportsToSOL(creator.PriceLamports))
	}
	ref, err := solana.NewReference()
	if err != nil {
		return nil, fmt.Errorf("generate reference: %w", err)
	}

	tip := &models.Tip{
		CreatorID:       creator.ID,
		AskerID:         in.AskerID,
		TipperWallet:    wallet,
		AmountLamports:  lamports,
		FeeBps:          fees.FeeBpsForLamports(lamports, creator.ProCreator),
		PremiumCreator:  creator.ProCreator,
		ReferencePubkey: ref,
		QuestionText:    strings.TrimSpace(in.QuestionText),
		Status:          domain.TipStatusAwaitingPayment,
		ExpiresAt:       s.now().UTC().Add(s.answerTimeout),
	}
	if err := s.tips.Create(ctx, tip); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"tip_id":   tip.ID,
		"creator":  creator.TwitterHandle,
		"lamports": tip.AmountLamports,
		"fee_bps":  tip.FeeBps,
	}).Info("[Tips] Created tip")

	return &CreatedTip{
		Tip: tip,
		SolanaPayURL: solana.PayURL(solana.PayRequest{
			Recipient: s.vaultAddress,
			Amount:    fees.LamportsToSOL(lamports),
			Reference: ref,
			Label:     "@" + creator.TwitterHandle,
			Memo:      domain.MemoPrefix + tip.ID,
		}),
	}, nil
}

// TipView is a tip as the payer or creator sees it.
type TipView struct {
	*models.Tip
	Status   string         `json:"status"`
	Settling bool           `json:"settling"`
	Answer   *models.Answer `json:"answer,omitempty"`
}

func (s *TipService) Get(ctx context.Context, id string) (*TipView, error) {
	tip, err := s.tips.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, tip)
}

func (s *TipService) view(ctx context.Context, tip *models.Tip) (*TipView, error) {
	status, settling := domain.PublicStatus(tip.Status)
	v := &TipView{Tip: tip, Status: status, Settling: settling}
	if tip.Status == domain.TipStatusReleasing || tip.Status == domain.TipStatusReleased {
		a, err := s.answers.GetByTipID(ctx, tip.ID)
		if err != nil && !errors.Is(err, repository.ErrAnswerNotFound) {
			return nil, err
		}
		v.Answer = a
	}
	return v, nil
}
