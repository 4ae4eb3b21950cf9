package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/batch"
	"credit-engine/internal/domain/loan"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockLoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan, schedule []loan.Installment) (*loan.Loan, error) {
	args := m.Called(ctx, tx, newLoan, schedule)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListLoans(ctx context.Context, filter loan.Filter, page loan.PageRequest) ([]loan.Loan, int64, error) {
	args := m.Called(ctx, filter, page)
	if items, ok := args.Get(0).([]loan.Loan); ok {
		return items, args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *MockLoanRepository) GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, loanID)
	if installments, ok := args.Get(0).([]loan.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) FindEligibleInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64, from, to time.Time) ([]loan.Installment, error) {
	args := m.Called(ctx, tx, loanID, from, to)
	if installments, ok := args.Get(0).([]loan.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) MarkInstallmentPaidInTx(ctx context.Context, tx pgx.Tx, inst *loan.Installment) error {
	args := m.Called(ctx, tx, inst)
	return args.Error(0)
}

func (m *MockLoanRepository) HasUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (bool, error) {
	args := m.Called(ctx, tx, loanID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLoanRepository) MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	args := m.Called(ctx, tx, loanID)
	return args.Error(0)
}

func (m *MockLoanRepository) AdjustUsedCreditInTx(ctx context.Context, tx pgx.Tx, customerID int64, delta decimal.Decimal) error {
	args := m.Called(ctx, tx, customerID, delta)
	return args.Error(0)
}

func (m *MockLoanRepository) AdjustUsedCreditByLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64, delta decimal.Decimal) error {
	args := m.Called(ctx, tx, loanID, delta)
	return args.Error(0)
}

func (m *MockLoanRepository) GetOverdueLoans(ctx context.Context, asOf time.Time) ([]loan.OverdueLoan, error) {
	args := m.Called(ctx, asOf)
	if overdue, ok := args.Get(0).([]loan.OverdueLoan); ok {
		return overdue, args.Error(1)
	}
	return nil, args.Error(1)
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOverdueReportJobRun(t *testing.T) {
	ctx := context.Background()

	t.Run("should report overdue loans and finish cleanly", func(t *testing.T) {
		repo := new(MockLoanRepository)
		job := batch.NewOverdueReportJob(repo, testLogger)

		overdue := []loan.OverdueLoan{
			{LoanID: 9, CustomerID: 1, Overdue: 3, OldestDue: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)},
			{LoanID: 12, CustomerID: 2, Overdue: 1, OldestDue: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		}
		repo.On("GetOverdueLoans", ctx, mock.AnythingOfType("time.Time")).Return(overdue, nil)

		assert.NoError(t, job.Run(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("should finish cleanly with nothing overdue", func(t *testing.T) {
		repo := new(MockLoanRepository)
		job := batch.NewOverdueReportJob(repo, testLogger)

		repo.On("GetOverdueLoans", ctx, mock.AnythingOfType("time.Time")).Return([]loan.OverdueLoan{}, nil)

		assert.NoError(t, job.Run(ctx))
	})

	t.Run("should abort when the repository fails", func(t *testing.T) {
		repo := new(MockLoanRepository)
		job := batch.NewOverdueReportJob(repo, testLogger)

		repo.On("GetOverdueLoans", ctx, mock.AnythingOfType("time.Time")).Return(nil, errors.New("connection refused"))

		assert.Error(t, job.Run(ctx))
	})
}
