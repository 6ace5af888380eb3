// Request and response shapes of the bridge HTTP API.
package dto

import (
	"time"

	"bridge-backend/internal/models"
)

// CreateTransferRequest opens a new transfer intent. Amount is a decimal
// token-unit string ("99.9").
type CreateTransferRequest struct {
	Account   string `json:"account" binding:"required"`
	AssetFrom string `json:"asset_from" binding:"required"`
	AssetTo   string `json:"asset_to" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	ChainFrom int    `json:"chain_from" binding:"required"`
	ChainTo   int    `json:"chain_to" binding:"required"`
}

// AttachDepositRequest reports the user-signed escrow transaction hash
type AttachDepositRequest struct {
	TxHash string `json:"tx_hash" binding:"required"`
}

// TransferResponse is the API view of a transfer intent
type TransferResponse struct {
	ID            string                      `json:"id"`
	Status        models.TransferIntentStatus `json:"status"`
	Account       string                      `json:"account"`
	AssetFrom     string                      `json:"asset_from"`
	AssetTo       string                      `json:"asset_to"`
	Amount        string                      `json:"amount"`
	Fee           string                      `json:"fee"`
	ReleaseAmount string                      `json:"release_amount"`
	ChainFrom     int                         `json:"chain_from"`
	ChainTo       int                         `json:"chain_to"`
	DepositTx     string                      `json:"deposit_tx,omitempty"`
	WithdrawTx    string                      `json:"withdraw_tx,omitempty"`
	Error         string                      `json:"error,omitempty"`
	CreatedAt     time.Time                   `json:"created_at"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
}

// TransferFromModel converts a stored intent into its API view
func TransferFromModel(intent *models.TransferIntent) *TransferResponse {
	return &TransferResponse{
		ID:            intent.ID,
		Status:        intent.Status,
		Account:       intent.Account,
		AssetFrom:     intent.AssetFrom,
		AssetTo:       intent.AssetTo,
		Amount:        intent.Amount,
		Fee:           intent.Fee,
		ReleaseAmount: intent.ReleaseAmount,
		ChainFrom:     intent.ChainFrom,
		ChainTo:       intent.ChainTo,
		DepositTx:     intent.DepositTxHash,
		WithdrawTx:    intent.WithdrawTxHash,
		Error:         intent.LastError,
		CreatedAt:     intent.CreatedAt,
		CompletedAt:   intent.CompletedAt,
	}
}

// TransferListResponse is a paginated transfer history page
type TransferListResponse struct {
	Transfers []*TransferResponse `json:"transfers"`
	Total     int64               `json:"total"`
	Page      int                 `json:"page"`
	Limit     int                 `json:"limit"`
}

// FaucetRequest asks the testnet dispenser for tokens
type FaucetRequest struct {
	Account string   `json:"account" binding:"required"`
	ChainID int      `json:"chain_id" binding:"required"`
	Assets  []string `json:"assets" binding:"required"`
	Amounts []string `json:"amounts" binding:"required"` // decimal token units
}

// FaucetResponse reports the submitted faucet transaction
type FaucetResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Message string `json:"message,omitempty"`
}

// StrandedTransferResponse is the admin view of a stranded transfer
type StrandedTransferResponse struct {
	ID            string                        `json:"id"`
	IntentID      string                        `json:"intent_id"`
	Status        models.StrandedTransferStatus `json:"status"`
	Account       string                        `json:"account"`
	ChainTo       int                           `json:"chain_to"`
	ReleaseAmount string                        `json:"release_amount"`
	DepositTx     string                        `json:"deposit_tx"`
	RetryCount    int                           `json:"retry_count"`
	MaxRetries    int                           `json:"max_retries"`
	NextRetryAt   time.Time                     `json:"next_retry_at"`
	LastError     string                        `json:"last_error"`
	CreatedAt     time.Time                     `json:"created_at"`
	ResolvedAt    *time.Time                    `json:"resolved_at,omitempty"`
}

// StrandedFromModel converts a stored stranded transfer into its API view
func StrandedFromModel(st *models.StrandedTransfer) *StrandedTransferResponse {
	return &StrandedTransferResponse{
		ID:            st.ID,
		IntentID:      st.IntentID,
		Status:        st.Status,
		Account:       st.Account,
		ChainTo:       st.ChainTo,
		ReleaseAmount: st.ReleaseAmount,
		DepositTx:     st.DepositTxHash,
		RetryCount:    st.RetryCount,
		MaxRetries:    st.MaxRetries,
		NextRetryAt:   st.NextRetryAt,
		LastError:     st.LastError,
		CreatedAt:     st.CreatedAt,
		ResolvedAt:    st.ResolvedAt,
	}
}
