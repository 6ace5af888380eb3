package types

import "math/big"

// DepositReceipt is the evidence produced by a mined escrow deposit. The
// coordinator only authorizes release against a receipt whose fields match the
// stored intent.
type DepositReceipt struct {
	TxHash      string
	BlockNumber uint64
	Amount      *big.Int
	Account     string
	Asset       string
	Correlation [32]byte // data field of the DepositReceived event
}

// WithdrawalReceipt is the terminal artifact of a successful release
type WithdrawalReceipt struct {
	TxHash      string
	BlockNumber uint64
	Amount      *big.Int
}
