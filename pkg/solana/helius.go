package solana

// EnhancedTransaction is one entry of a Helius enhanced-transaction webhook batch.
type EnhancedTransaction struct {
	Signature       string           `json:"signature"`
	Type            string           `json:"type"`
	Timestamp       int64            `json:"timestamp"`
	NativeTransfers []NativeTransfer `json:"nativeTransfers"`
	AccountData     []AccountData    `json:"accountData"`
	Instructions    []Instruction    `json:"instructions"`
}

type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Recipient       string `json:"recipient,omitempty"`
	Amount          uint64 `json:"amount"`
}

func (n NativeTransfer) To() string {
	if n.ToUserAccount != "" {
		return n.ToUserAccount
	}
	return n.Recipient
}

type AccountData struct {
	Account             string `json:"account"`
	NativeBalanceChange int64  `json:"nativeBalanceChange"`
}

type Instruction struct {
	ProgramID         string        `json:"programId"`
	Accounts          []string      `json:"accounts"`
	InnerInstructions []Instruction `json:"innerInstructions"`
}

// InboundTo sums the lamports transferred to addr in this transaction.
func (t *EnhancedTransaction) InboundTo(addr string) uint64 {
	var total uint64
	for _, n := range t.NativeTransfers {
		if n.To() == addr {
			total += n.Amount
		}
	}
	return total
}

// PaysTo reports whether any native transfer in t credits addr.
func (t *EnhancedTransaction) PaysTo(addr string) bool {
	for _, n := range t.NativeTransfers {
		if n.To() == addr {
			return true
		}
	}
	return false
}

// ReferencedAccounts lists every account the transaction touches, in first
// seen order, without duplicates.
func (t *EnhancedTransaction) ReferencedAccounts() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(a string) {
		if a == "" {
			return
		}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	for _, d := range t.AccountData {
		add(d.Account)
	}
	var walk func(ins []Instruction)
	walk = func(ins []Instruction) {
		for _, in := range ins {
			for _, a := range in.Accounts {
				add(a)
			}
			walk(in.InnerInstructions)
		}
	}
	walk(t.Instructions)
	return out
}
