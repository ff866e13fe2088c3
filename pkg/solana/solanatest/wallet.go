// Package solanatest provides an in-memory solana.Wallet for tests.
package solanatest

import (
	"context"
	"fmt"
	"sync"

	"tipwall/pkg/solana"
)

// Sent is a transfer the fake wallet accepted.
type Sent struct {
	Signature   string
	Destination string
	Lamports    uint64
}

// Wallet records every transfer and lets tests script failures and
// cluster-reported statuses.
type Wallet struct {
	mu       sync.Mutex
	address  string
	seq      int
	sent     []Sent
	statuses map[string]solana.Status

	// SendErr, when set, is returned by Send for the given destination
	// and the transaction is not recorded.
	SendErr map[string]error
	// SignErr, when set, is returned by every Sign call.
	SignErr error
}

func NewWallet(address string) *Wallet {
	return &Wallet{
		address:  address,
		statuses: make(map[string]solana.Status),
		SendErr:  make(map[string]error),
	}
}

func (w *Wallet) Address() string { return w.address }

func (w *Wallet) Sign(_ context.Context, to string, lamports uint64) (*solana.SignedTransfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.SignErr != nil {
		return nil, w.SignErr
	}
	w.seq++
	return &solana.SignedTransfer{
		Signature:   fmt.Sprintf("sig-%d-%s", w.seq, to),
		Destination: to,
		Lamports:    lamports,
	}, nil
}

func (w *Wallet) Send(_ context.Context, t *solana.SignedTransfer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.SendErr[t.Destination]; err != nil {
		return err
	}
	w.sent = append(w.sent, Sent{Signature: t.Signature, Destination: t.Destination, Lamports: t.Lamports})
	w.statuses[t.Signature] = solana.StatusConfirmed
	return nil
}

func (w *Wallet) SignatureStatus(_ context.Context, signature string) (solana.Status, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statuses[signature], nil
}

// SetStatus overrides what the cluster reports for signature.
func (w *Wallet) SetStatus(signature string, s solana.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.statuses[signature] = s
}

// Sent returns a copy of the accepted transfers in send order.
func (w *Wallet) Sent() []Sent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Sent, len(w.sent))
	copy(out, w.sent)
	return out
}

// SentTo sums lamports accepted for destination.
func (w *Wallet) SentTo(destination string) uint64 {
	var total uint64
	for _, s := range w.Sent() {
		if s.Destination == destination {
			total += s.Lamports
		}
	}
	return total
}
