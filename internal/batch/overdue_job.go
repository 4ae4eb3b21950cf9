package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
)

// OverdueReportJob walks all unpaid installments past their due date, logs a
// per-loan summary for the operations team and refreshes the overdue gauge.
// It reads and never mutates; overdue installments stay payable only through
// the regular payment flow.
type OverdueReportJob struct {
	loanRepo loan.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewOverdueReportJob(loanRepo loan.Repository, logger *slog.Logger) *OverdueReportJob {
	if loanRepo == nil || logger == nil {
		panic("OverdueReportJob dependencies cannot be nil")
	}
	return &OverdueReportJob{
		loanRepo: loanRepo,
		logger:   logger.With("job", "OverdueReport"),
		now:      time.Now,
	}
}

func (j *OverdueReportJob) Run(ctx context.Context) error {
	startTime := time.Now()
	asOf := j.now()
	j.logger.InfoContext(ctx, "Starting overdue installment report job.", slog.Time("as_of", asOf))

	overdueLoans, err := j.loanRepo.GetOverdueLoans(ctx, asOf)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to load overdue loans, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to load overdue loans: %w", err)
	}

	totalOverdue := 0
	for _, o := range overdueLoans {
		totalOverdue += o.Overdue
		j.logger.WarnContext(ctx, "Loan has overdue installments.",
			slog.Int64("loanID", o.LoanID),
			slog.Int64("customerID", o.CustomerID),
			slog.Int("overdue_installments", o.Overdue),
			slog.Time("oldest_due_date", o.OldestDue),
		)
	}

	monitoring.SetOverdueInstallments(totalOverdue)

	j.logger.InfoContext(ctx, "Overdue installment report job finished.",
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("loans_with_overdue", len(overdueLoans)),
		slog.Int("overdue_installments", totalOverdue),
	)
	return nil
}
