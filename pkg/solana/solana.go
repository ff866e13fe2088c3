// Package solana is the boundary to the Solana network: vault transfers,
// signature status lookups, payment references and Solana Pay URLs.
package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sol "github.com/gagliardetto/solana-go"
)

// Status of a submitted transaction as reported by the cluster.
type Status int

const (
	StatusUnknown Status = iota // not seen by the cluster
	StatusProcessed
	StatusConfirmed
	StatusFailed // landed with an execution error
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrTransactionFailed   = errors.New("solana: transaction failed on chain")
	ErrConfirmationTimeout = errors.New("solana: confirmation timed out")
	ErrInvalidAddress      = errors.New("solana: invalid address")
	ErrInvalidKeypair      = errors.New("solana: invalid keypair")
)

// SignedTransfer is a vault transfer that has been signed but not yet
// broadcast. Its signature is final once signed.
type SignedTransfer struct {
	Signature   string
	Destination string
	Lamports    uint64
	Tx          *sol.Transaction
}

// Wallet moves lamports out of the platform vault.
type Wallet interface {
	Address() string
	Sign(ctx context.Context, to string, lamports uint64) (*SignedTransfer, error)
	// Send broadcasts a signed transfer and waits for confirmed commitment.
	Send(ctx context.Context, t *SignedTransfer) error
	SignatureStatus(ctx context.Context, signature string) (Status, error)
}

// ParseKeypair accepts a solana-keygen JSON byte array or a base58 secret key.
func ParseKeypair(raw string) (sol.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidKeypair
	}
	if strings.HasPrefix(raw, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(raw), &ints); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
		}
		if len(ints) != 64 {
			return nil, fmt.Errorf("%w: want 64 bytes, got %d", ErrInvalidKeypair, len(ints))
		}
		key := make([]byte, 64)
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeypair, i)
			}
			key[i] = byte(v)
		}
		return sol.PrivateKey(key), nil
	}
	key, err := sol.PrivateKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return key, nil
}

// ValidateAddress checks that s is a base58 encoded 32 byte public key.
func ValidateAddress(s string) error {
	if _, err := sol.PublicKeyFromBase58(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, s)
	}
	return nil
}

// NewReference returns a fresh public key used only to tag one payment.
func NewReference() (string, error) {
	key, err := sol.NewRandomPrivateKey()
	if err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}
