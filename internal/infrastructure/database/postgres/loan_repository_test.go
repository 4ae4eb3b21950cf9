package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newLoanRepoWithMock(t *testing.T) (*LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewLoanRepository(mockPool, testLogger), mockPool
}

var loanColumns = []string{"id", "customer_id", "loan_amount", "number_of_installment", "interest_rate", "is_paid", "created_at", "updated_at"}

func TestGetLoanByID(t *testing.T) {
	ctx := context.Background()

	t.Run("should scan the stored loan", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)
		now := time.Now()

		mockPool.ExpectQuery("SELECT (.+) FROM loans").
			WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(loanColumns).
				AddRow(int64(42), int64(1), d("3300"), 6, d("0.1"), false, now, now))

		got, err := repo.GetLoanByID(ctx, 42)

		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ID)
		assert.True(t, got.LoanAmount.Equal(d("3300")))
		assert.Equal(t, 6, got.NumberOfInstallment)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should map no rows to not found", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)

		mockPool.ExpectQuery("SELECT (.+) FROM loans").
			WithArgs(int64(404)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetLoanByID(ctx, 404)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestCreateLoanInTx(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newLoanRepoWithMock(t)
	now := time.Now()

	newLoan := &loan.Loan{CustomerID: 1, LoanAmount: d("3300"), NumberOfInstallment: 2, InterestRate: d("0.1")}
	due1 := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	due2 := due1.AddDate(0, 1, 0)
	schedule := []loan.Installment{
		{Amount: d("1650"), DueDate: due1},
		{Amount: d("1650"), DueDate: due2},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("INSERT INTO loans").
		WithArgs(int64(1), newLoan.LoanAmount, 2, newLoan.InterestRate).
		WillReturnRows(pgxmock.NewRows(loanColumns).
			AddRow(int64(7), int64(1), d("3300"), 2, d("0.1"), false, now, now))
	batch := mockPool.ExpectBatch()
	batch.ExpectExec("INSERT INTO loan_installments").
		WithArgs(int64(7), schedule[0].Amount, due1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO loan_installments").
		WithArgs(int64(7), schedule[1].Amount, due2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	created, err := repo.CreateLoanInTx(ctx, tx, newLoan, schedule)

	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestFindEligibleInstallmentsForUpdate(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newLoanRepoWithMock(t)

	from := time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 3, 0)
	due := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("SELECT (.+) FROM loan_installments(.+)FOR UPDATE").
		WithArgs(int64(9), from, to).
		WillReturnRows(pgxmock.NewRows([]string{"id", "loan_id", "amount", "paid_amount", "due_date", "payment_date", "is_paid", "created_at", "updated_at"}).
			AddRow(int64(1), int64(9), d("350"), decimal.NullDecimal{}, due, nil, false, now, now))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	eligible, err := repo.FindEligibleInstallmentsForUpdate(ctx, tx, 9, from, to)

	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.True(t, eligible[0].Amount.Equal(d("350")))
	assert.False(t, eligible[0].IsPaid)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestAdjustUsedCreditByLoanInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("should apply the delta through the loan's owner", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE customers").
			WithArgs(d("-700"), int64(9)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)

		assert.NoError(t, repo.AdjustUsedCreditByLoanInTx(ctx, tx, 9, d("-700")))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report not found when no customer row matches", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)

		mockPool.ExpectBegin()
		mockPool.ExpectExec("UPDATE customers").
			WithArgs(d("-700"), int64(9)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		tx, err := repo.BeginTx(ctx)
		require.NoError(t, err)

		err = repo.AdjustUsedCreditByLoanInTx(ctx, tx, 9, d("-700"))
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestListLoans(t *testing.T) {
	ctx := context.Background()

	t.Run("should count and page with the default sort", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)
		now := time.Now()

		mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM loans").
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
		mockPool.ExpectQuery("ORDER BY loan_amount ASC").
			WithArgs(int64(1), 20, 0).
			WillReturnRows(pgxmock.NewRows(loanColumns).
				AddRow(int64(5), int64(1), d("1100"), 6, d("0.1"), false, now, now).
				AddRow(int64(6), int64(1), d("3300"), 12, d("0.2"), true, now, now))

		loans, total, err := repo.ListLoans(ctx, loan.Filter{CustomerID: 1}, loan.PageRequest{Page: 1, Size: 20})

		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, loans, 2)
		assert.Equal(t, int64(5), loans[0].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should bind optional filters", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)

		count := 6
		paid := false
		mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM loans").
			WithArgs(int64(1), 6, false).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mockPool.ExpectQuery("FROM loans").
			WithArgs(int64(1), 6, false, 20, 0).
			WillReturnRows(pgxmock.NewRows(loanColumns))

		loans, total, err := repo.ListLoans(ctx,
			loan.Filter{CustomerID: 1, NumberOfInstallment: &count, IsPaid: &paid},
			loan.PageRequest{Page: 1, Size: 20})

		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, loans)
	})

	t.Run("should fall back to loan_amount for unknown sort columns", func(t *testing.T) {
		repo, mockPool := newLoanRepoWithMock(t)

		mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM loans").
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mockPool.ExpectQuery("ORDER BY loan_amount DESC").
			WithArgs(int64(1), 20, 0).
			WillReturnRows(pgxmock.NewRows(loanColumns))

		_, _, err := repo.ListLoans(ctx, loan.Filter{CustomerID: 1},
			loan.PageRequest{Page: 1, Size: 20, SortBy: "; DROP TABLE loans", SortDesc: true})

		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMarkLoanPaidInTx(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newLoanRepoWithMock(t)

	mockPool.ExpectBegin()
	mockPool.ExpectExec("UPDATE loans SET is_paid").
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.MarkLoanPaidInTx(ctx, tx, 9))
	require.NoError(t, repo.CommitTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestGetOverdueLoans(t *testing.T) {
	ctx := context.Background()
	repo, mockPool := newLoanRepoWithMock(t)

	asOf := time.Date(2026, time.August, 28, 2, 0, 0, 0, time.UTC)
	oldest := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)

	mockPool.ExpectQuery("JOIN loans l ON").
		WithArgs(asOf).
		WillReturnRows(pgxmock.NewRows([]string{"id", "customer_id", "count", "min"}).
			AddRow(int64(9), int64(1), 3, oldest))

	overdue, err := repo.GetOverdueLoans(ctx, asOf)

	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, int64(9), overdue[0].LoanID)
	assert.Equal(t, 3, overdue[0].Overdue)
	assert.Equal(t, oldest, overdue[0].OldestDue)
}
