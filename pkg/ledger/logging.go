package ledger

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing ledger operation.
type OperationLog struct {
	Operation     string
	AccountID     AccountID
	TransactionID TransactionID
	Amount        CreditAmount
	Kind          TransactionKind
	Label         OperationLabel
	Status        string
	Error         error
}

// WithOperationLogger wires a logger that receives callbacks for every
// state-changing operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}
