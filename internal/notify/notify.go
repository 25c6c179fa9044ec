package notify

import (
	"context"
	"log"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier surfaces outcome messages to the user's UI session. Delivery is
// best-effort; implementations must never fail the operation that notifies.
type Notifier interface {
	Success(ctx context.Context, accountID, message string)
	Warning(ctx context.Context, accountID, message string)
	Error(ctx context.Context, accountID, message string)
}

// LogNotifier writes notifications to the process log. Used as the default
// sink and in tests.
type LogNotifier struct{}

func (LogNotifier) Success(_ context.Context, accountID, message string) {
	log.Printf("[notify] account=%s success: %s", accountID, message)
}

func (LogNotifier) Warning(_ context.Context, accountID, message string) {
	log.Printf("[notify] account=%s warning: %s", accountID, message)
}

func (LogNotifier) Error(_ context.Context, accountID, message string) {
	log.Printf("[notify] account=%s error: %s", accountID, message)
}
