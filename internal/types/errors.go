// Error taxonomy for the bridge relay pipeline. Callers branch on these to
// decide between synchronous rejection, bounded retry, and stranded-funds
// escalation.
package types

import (
	"errors"
	"fmt"
)

// UserInputError rejects a request before any transaction is submitted.
// Never retried.
type UserInputError struct {
	Field  string
	Reason string
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientChainError wraps RPC-level failures (timeouts, unavailable nodes,
// transactions stuck in the mempool). Absorbed by internal retry with the same
// parameters; does not change transfer state.
type TransientChainError struct {
	ChainID int
	Op      string
	Err     error
}

func (e *TransientChainError) Error() string {
	return fmt.Sprintf("transient chain error on chain %d during %s: %v", e.ChainID, e.Op, e.Err)
}

func (e *TransientChainError) Unwrap() error { return e.Err }

// RevertedTransactionError reports an on-chain revert. Fatal for the attempt:
// the transfer moves to the corresponding failed state.
type RevertedTransactionError struct {
	ChainID int
	TxHash  string
}

func (e *RevertedTransactionError) Error() string {
	return fmt.Sprintf("transaction %s reverted on chain %d", e.TxHash, e.ChainID)
}

// AuthorityError reports a missing or wrong relayer custody key. Fatal,
// audit-logged, never retried automatically.
type AuthorityError struct {
	ChainID int
	Reason  string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("relay authority error on chain %d: %s", e.ChainID, e.Reason)
}

// ErrConfirmTimeout marks a confirmation wait that expired without a receipt.
// Not a failure: the transfer stays pending and the wait is re-armed from the
// stored transaction hash.
var ErrConfirmTimeout = errors.New("confirmation wait timed out")

// ErrDuplicateSubmission rejects a second submission for an intent that is
// already deposit_pending or later.
var ErrDuplicateSubmission = errors.New("transfer intent already in flight")

// IsTransient reports whether err should be absorbed by bounded retry
func IsTransient(err error) bool {
	var t *TransientChainError
	return errors.As(err, &t)
}

// IsReverted reports whether err is an on-chain revert
func IsReverted(err error) bool {
	var r *RevertedTransactionError
	return errors.As(err, &r)
}
