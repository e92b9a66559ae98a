package model

// TransactionType names a user-initiated write.
type TransactionType string

const (
	TxDeposit     TransactionType = "Deposit"
	TxWithdraw    TransactionType = "Withdraw"
	TxMakeOrder   TransactionType = "MakeOrder"
	TxCancelOrder TransactionType = "CancelOrder"
	TxFillOrder   TransactionType = "FillOrder"
)

// TransactionState describes the lifecycle of the most recent write.
type TransactionState struct {
	Type         TransactionType `json:"transaction_type"`
	IsPending    bool            `json:"is_pending"`
	IsSuccessful bool            `json:"is_successful"`
	IsError      bool            `json:"is_error"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Error        string          `json:"error,omitempty"`
	TxHashes     []string        `json:"tx_hashes,omitempty"`
}
