package ledger

import (
	"context"
	"testing"
)

type recordingLogger struct {
	entries []OperationLog
}

func (logger *recordingLogger) LogOperation(ctx context.Context, entry OperationLog) {
	logger.entries = append(logger.entries, entry)
}

func TestServiceEmitsOperationLogs(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	logger := &recordingLogger{}
	service, err := NewService(store, func() int64 { return 100 }, WithOperationLogger(logger))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	accountID := mustAccountID(test, "log-user")

	if _, err := service.OpenAccount(context.Background(), accountID, 100, mustMetadata(test, "{}")); err != nil {
		test.Fatalf("open account: %v", err)
	}
	if _, err := service.DebitForOperation(context.Background(), accountID, LabelScript, mustDebitAmount(test, 3)); err != nil {
		test.Fatalf("debit: %v", err)
	}

	if len(logger.entries) != 2 {
		test.Fatalf("expected 2 log entries, got %d", len(logger.entries))
	}
	if logger.entries[0].Operation != operationOpenAccount || logger.entries[0].Status != operationStatusOK {
		test.Fatalf("unexpected first entry: %+v", logger.entries[0])
	}
	debitEntry := logger.entries[1]
	if debitEntry.Operation != operationDebit || debitEntry.Label != LabelScript || debitEntry.Amount != -3 {
		test.Fatalf("unexpected debit entry: %+v", debitEntry)
	}
}

func TestServiceLogsFailuresWithErrorStatus(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	logger := &recordingLogger{}
	service, err := NewService(store, func() int64 { return 100 }, WithOperationLogger(logger))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	accountID := mustAccountID(test, "log-user-2")
	if _, err := service.OpenAccount(context.Background(), accountID, 10, mustMetadata(test, "{}")); err != nil {
		test.Fatalf("open account: %v", err)
	}

	if _, err := service.DebitForOperation(context.Background(), accountID, LabelVideo, mustDebitAmount(test, 50)); err == nil {
		test.Fatalf("expected insufficient credits")
	}
	last := logger.entries[len(logger.entries)-1]
	if last.Status != operationStatusError || last.Error == nil {
		test.Fatalf("expected error status on failed debit, got %+v", last)
	}
}
