package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceReconcile sweeps invoices whose stored total diverges from
	// their line items.
	TaskInvoiceReconcile = "invoice:reconcile"
)

// NewInvoiceReconcileTask constructs the reconciliation task. The sweep has
// no parameters; it always covers every unsubmitted invoice.
func NewInvoiceReconcileTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskInvoiceReconcile, nil), nil
}
