package solana

import (
	"net/url"

	"github.com/shopspring/decimal"
)

// PayRequest describes a Solana Pay transfer request.
type PayRequest struct {
	Recipient string
	Amount    decimal.Decimal // SOL
	Reference string
	Label     string
	Memo      string
}

// PayURL renders r as a solana: URL that wallets can open.
func PayURL(r PayRequest) string {
	q := url.Values{}
	q.Set("amount", r.Amount.String())
	if r.Reference != "" {
		q.Set("reference", r.Reference)
	}
	if r.Label != "" {
		q.Set("label", r.Label)
	}
	if r.Memo != "" {
		q.Set("memo", r.Memo)
	}
	return "solana:" + r.Recipient + "?" + q.Encode()
}
