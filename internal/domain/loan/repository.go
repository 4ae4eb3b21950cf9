package loan

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Filter narrows a customer's loan listing. CustomerID is mandatory, the
// remaining fields apply only when non-nil.
type Filter struct {
	CustomerID          int64
	NumberOfInstallment *int
	IsPaid              *bool
}

// PageRequest carries pagination and sorting for loan listings.
type PageRequest struct {
	Page     int
	Size     int
	SortBy   string
	SortDesc bool
}

// OverdueLoan summarizes the unpaid installments of a loan that are already
// past due, for the batch report.
type OverdueLoan struct {
	LoanID     int64
	CustomerID int64
	Overdue    int
	OldestDue  time.Time
}

type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// CreateLoanInTx inserts the loan and its full installment schedule.
	CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *Loan, schedule []Installment) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// ListLoans returns one page of a customer's loans plus the total match count.
	ListLoans(ctx context.Context, filter Filter, page PageRequest) ([]Loan, int64, error)

	GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]Installment, error)

	// FindEligibleInstallmentsForUpdate locks and returns the loan's unpaid
	// installments with due date in [from, to), ordered by due date then id.
	FindEligibleInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64, from, to time.Time) ([]Installment, error)

	MarkInstallmentPaidInTx(ctx context.Context, tx pgx.Tx, inst *Installment) error

	HasUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (bool, error)

	MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error

	// AdjustUsedCreditInTx adds delta (which may be negative) to the customer's
	// used credit limit. Returns apperrors.ErrNotFound when no customer row
	// matches.
	AdjustUsedCreditInTx(ctx context.Context, tx pgx.Tx, customerID int64, delta decimal.Decimal) error

	// AdjustUsedCreditByLoanInTx does the same, resolving the customer through
	// the loan's back-reference.
	AdjustUsedCreditByLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64, delta decimal.Decimal) error

	// GetOverdueLoans reports loans holding unpaid installments due before asOf.
	GetOverdueLoans(ctx context.Context, asOf time.Time) ([]OverdueLoan, error)
}
