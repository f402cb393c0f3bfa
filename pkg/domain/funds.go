package domain

import "context"

// Transfer describes an escrow fund movement from the receiving party to the
// item's prior custodian.
type Transfer struct {
	ItemCode ItemCode `json:"item_code"`
	From     Identity `json:"from"`
	To       Identity `json:"to"`
	Amount   uint64   `json:"amount"`
}

// FundTransferer moves value between accounts. Implementations may fail and
// may call back into the ledger; the ledger treats them as opaque. The ledger
// stops waiting once ctx is done, so an implementation must not apply a
// transfer after ctx has ended.
type FundTransferer interface {
	Transfer(ctx context.Context, transfer Transfer) error
}
