package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{TipStatusAwaitingPayment, TipStatusFunded},
		{TipStatusAwaitingPayment, TipStatusExpired},
		{TipStatusFunded, TipStatusReleasing},
		{TipStatusFunded, TipStatusRefunding},
		{TipStatusReleasing, TipStatusReleased},
		{TipStatusRefunding, TipStatusRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]string{
		{TipStatusFunded, TipStatusAwaitingPayment},
		{TipStatusFunded, TipStatusFunded},
		{TipStatusAwaitingPayment, TipStatusReleasing},
		{TipStatusReleasing, TipStatusRefunded},
		{TipStatusRefunding, TipStatusReleased},
		{TipStatusReleased, TipStatusRefunding},
		{TipStatusExpired, TipStatusFunded},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []string{TipStatusReleased, TipStatusRefunded, TipStatusExpired} {
		assert.True(t, IsTerminal(s), s)
	}
	for _, s := range []string{TipStatusAwaitingPayment, TipStatusFunded, TipStatusReleasing, TipStatusRefunding} {
		assert.False(t, IsTerminal(s), s)
	}
}

func TestPublicStatus(t *testing.T) {
	s, settling := PublicStatus(TipStatusReleasing)
	assert.Equal(t, TipStatusFunded, s)
	assert.True(t, settling)

	s, settling = PublicStatus(TipStatusReleased)
	assert.Equal(t, TipStatusReleased, s)
	assert.False(t, settling)
}
