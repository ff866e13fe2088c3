package solana

import (
	"context"
	"fmt"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/time/rate"
)

const pollInterval = 750 * time.Millisecond

// VaultClient signs transfers with the platform vault key and talks to a
// Solana JSON-RPC endpoint.
type VaultClient struct {
	rpc            *rpc.Client
	key            sol.PrivateKey
	limiter        *rate.Limiter
	confirmTimeout time.Duration
}

type VaultConfig struct {
	RPCURL             string
	PrivateKey         string
	TransfersPerSecond float64
	ConfirmTimeout     time.Duration
}

func NewVaultClient(cfg VaultConfig) (*VaultClient, error) {
	key, err := ParseKeypair(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	rps := cfg.TransfersPerSecond
	if rps <= 0 {
		rps = 5
	}
	timeout := cfg.ConfirmTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &VaultClient{
		rpc:            rpc.New(cfg.RPCURL),
		key:            key,
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
		confirmTimeout: timeout,
	}, nil
}

func (c *VaultClient) Address() string {
	return c.key.PublicKey().String()
}

func (c *VaultClient) Sign(ctx context.Context, to string, lamports uint64) (*SignedTransfer, error) {
	dest, err := sol.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, to)
	}
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	from := c.key.PublicKey()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{
			system.NewTransferInstruction(lamports, from, dest).Build(),
		},
		recent.Value.Blockhash,
		sol.TransactionPayer(from),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}
	_, err = tx.Sign(func(key sol.PublicKey) *sol.PrivateKey {
		if key.Equals(from) {
			return &c.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	return &SignedTransfer{
		Signature:   tx.Signatures[0].String(),
		Destination: to,
		Lamports:    lamports,
		Tx:          tx,
	}, nil
}

func (c *VaultClient) Send(ctx context.Context, t *SignedTransfer) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.rpc.SendTransactionWithOpts(ctx, t.Tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return fmt.Errorf("send transaction: %w", err)
	}
	return c.awaitConfirmed(ctx, t.Signature)
}

func (c *VaultClient) awaitConfirmed(ctx context.Context, signature string) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()
	for {
		status, err := c.SignatureStatus(ctx, signature)
		if err == nil {
			switch status {
			case StatusConfirmed:
				return nil
			case StatusFailed:
				return ErrTransactionFailed
			}
		}
		select {
		case <-ctx.Done():
			return ErrConfirmationTimeout
		case <-tick.C:
		}
	}
}

func (c *VaultClient) SignatureStatus(ctx context.Context, signature string) (Status, error) {
	sig, err := sol.SignatureFromBase58(signature)
	if err != nil {
		return StatusUnknown, fmt.Errorf("parse signature: %w", err)
	}
	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return StatusUnknown, err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return StatusUnknown, nil
	}
	return statusOf(out.Value[0]), nil
}

func statusOf(s *rpc.SignatureStatusesResult) Status {
	if s.Err != nil {
		return StatusFailed
	}
	switch s.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return StatusConfirmed
	case rpc.ConfirmationStatusProcessed:
		return StatusProcessed
	default:
		return StatusUnknown
	}
}
