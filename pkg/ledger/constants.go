package ledger

const (
	operationOpenAccount = "open_account"
	operationRecord      = "record"
	operationDebit       = "debit"
	operationRefund      = "refund"
	operationComplete    = "complete"
	operationFail        = "fail"
	operationReconcile   = "reconcile"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// DefaultListLimit caps ListTransactions pages when no limit is given.
	DefaultListLimit = 50
	// MaxListLimit is the hard ceiling for a single page.
	MaxListLimit = 200
)
