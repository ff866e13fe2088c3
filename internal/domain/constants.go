package domain

// Tip statuses. releasing and refunding are claim states held while
// outbound transfers are in flight.
const (
	TipStatusAwaitingPayment = "awaiting_payment"
	TipStatusFunded          = "funded"
	TipStatusReleasing       = "releasing"
	TipStatusReleased        = "released"
	TipStatusRefunding       = "refunding"
	TipStatusRefunded        = "refunded"
	TipStatusExpired         = "expired"
)

var tipTransitions = map[string][]string{
	TipStatusAwaitingPayment: {TipStatusFunded, TipStatusExpired},
	TipStatusFunded:          {TipStatusReleasing, TipStatusRefunding},
	TipStatusReleasing:       {TipStatusReleased},
	TipStatusRefunding:       {TipStatusRefunded},
}

// CanTransition reports whether a tip may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range tipTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists for status.
func IsTerminal(status string) bool {
	return len(tipTransitions[status]) == 0
}

// PublicStatus hides the internal claim states from API consumers.
func PublicStatus(status string) (public string, settling bool) {
	switch status {
	case TipStatusReleasing, TipStatusRefunding:
		return TipStatusFunded, true
	default:
		return status, false
	}
}

const (
	TransferKindPayout = "payout"
	TransferKindFee    = "fee"
	TransferKindRefund = "refund"
)

const (
	TransferStatusPending   = "pending"
	TransferStatusSubmitted = "submitted"
	TransferStatusConfirmed = "confirmed"
	TransferStatusFailed    = "failed"
)

const (
	NotifTipFunded   = "TIP_FUNDED"
	NotifTipReleased = "TIP_RELEASED"
	NotifTipRefunded = "TIP_REFUNDED"
)

const LamportsPerSOL = 1_000_000_000

// Text limits for questions and answers.
const (
	QuestionMinLen = 2
	QuestionMaxLen = 280
	AnswerMinLen   = 2
	AnswerMaxLen   = 1000
)

// MemoPrefix tags Solana Pay requests so explorers show which tip a payment is for.
const MemoPrefix = "tipwall:"
