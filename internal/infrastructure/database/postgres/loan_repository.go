package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan, schedule []loan.Installment) (*loan.Loan, error) {
	loanSQL := `
        INSERT INTO loans (customer_id, loan_amount, number_of_installment, interest_rate, is_paid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
        RETURNING id, customer_id, loan_amount, number_of_installment, interest_rate, is_paid, created_at, updated_at`

	var created loan.Loan
	err := tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, newLoan.LoanAmount, newLoan.NumberOfInstallment, newLoan.InterestRate,
	).Scan(
		&created.ID, &created.CustomerID, &created.LoanAmount, &created.NumberOfInstallment,
		&created.InterestRate, &created.IsPaid, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}

	installmentSQL := `
        INSERT INTO loan_installments (loan_id, amount, due_date, is_paid, created_at, updated_at)
        VALUES ($1, $2, $3, FALSE, NOW(), NOW())`

	batch := &pgx.Batch{}
	for _, inst := range schedule {
		batch.Queue(installmentSQL, created.ID, inst.Amount, inst.DueDate)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(schedule); i++ {
		if _, err = results.Exec(); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing installment batch insert", "error", err, "entry_index", i, "loan_id", created.ID)
			return nil, fmt.Errorf("%w: failed inserting installment %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err = results.Close(); err != nil {
		r.logger.ErrorContext(ctx, "Failed closing installment batch results", "error", err, "loan_id", created.ID)
		return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Loan and schedule created in DB", "loan_id", created.ID, "num_installments", len(schedule))
	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT id, customer_id, loan_amount, number_of_installment, interest_rate, is_paid, created_at, updated_at
        FROM loans
        WHERE id = $1`

	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.CustomerID, &l.LoanAmount, &l.NumberOfInstallment,
		&l.InterestRate, &l.IsPaid, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &l, nil
}

var loanSortColumns = map[string]string{
	"loanAmount": "loan_amount",
	"createdAt":  "created_at",
}

func (r *LoanRepository) ListLoans(ctx context.Context, filter loan.Filter, page loan.PageRequest) ([]loan.Loan, int64, error) {
	where := []string{"customer_id = $1"}
	args := []any{filter.CustomerID}

	if filter.NumberOfInstallment != nil {
		args = append(args, *filter.NumberOfInstallment)
		where = append(where, fmt.Sprintf("number_of_installment = $%d", len(args)))
	}
	if filter.IsPaid != nil {
		args = append(args, *filter.IsPaid)
		where = append(where, fmt.Sprintf("is_paid = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int64
	countSQL := "SELECT COUNT(*) FROM loans WHERE " + whereClause
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count loans", "customer_id", filter.CustomerID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	sortColumn, ok := loanSortColumns[page.SortBy]
	if !ok {
		sortColumn = "loan_amount"
	}
	direction := "ASC"
	if page.SortDesc {
		direction = "DESC"
	}

	args = append(args, page.Size, (page.Page-1)*page.Size)
	listSQL := fmt.Sprintf(`
        SELECT id, customer_id, loan_amount, number_of_installment, interest_rate, is_paid, created_at, updated_at
        FROM loans
        WHERE %s
        ORDER BY %s %s, id ASC
        LIMIT $%d OFFSET $%d`, whereClause, sortColumn, direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans", "customer_id", filter.CustomerID, "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		err := rows.Scan(
			&l.ID, &l.CustomerID, &l.LoanAmount, &l.NumberOfInstallment,
			&l.InterestRate, &l.IsPaid, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "error", err)
			return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "error", err)
		return nil, 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, total, nil
}

const installmentColumns = "id, loan_id, amount, paid_amount, due_date, payment_date, is_paid, created_at, updated_at"

func (r *LoanRepository) GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1
        ORDER BY due_date ASC, id ASC`

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return scanInstallments(rows, r.logger)
}

func (r *LoanRepository) FindEligibleInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64, from, to time.Time) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1 AND is_paid = FALSE AND due_date >= $2 AND due_date < $3
        ORDER BY due_date ASC, id ASC
        FOR UPDATE`

	rows, err := tx.Query(ctx, query, loanID, from, to)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query eligible installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	return scanInstallments(rows, r.logger)
}

func scanInstallments(rows pgx.Rows, logger *slog.Logger) ([]loan.Installment, error) {
	installments := make([]loan.Installment, 0)
	for rows.Next() {
		var inst loan.Installment
		err := rows.Scan(
			&inst.ID, &inst.LoanID, &inst.Amount, &inst.PaidAmount,
			&inst.DueDate, &inst.PaymentDate, &inst.IsPaid,
			&inst.CreatedAt, &inst.UpdatedAt,
		)
		if err != nil {
			logger.Error("Failed to scan installment row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Error iterating installment rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return installments, nil
}

func (r *LoanRepository) MarkInstallmentPaidInTx(ctx context.Context, tx pgx.Tx, inst *loan.Installment) error {
	sql := `
        UPDATE loan_installments
        SET paid_amount = $1, payment_date = $2, is_paid = TRUE, updated_at = NOW()
        WHERE id = $3 AND loan_id = $4`

	cmdTag, err := tx.Exec(ctx, sql, inst.PaidAmount, inst.PaymentDate, inst.ID, inst.LoanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update installment", "installment_id", inst.ID, "loan_id", inst.LoanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Installment update affected zero rows", "installment_id", inst.ID, "loan_id", inst.LoanID)
		return fmt.Errorf("%w: installment update affected zero rows", apperrors.ErrDatabase)
	}
	return nil
}

func (r *LoanRepository) HasUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM loan_installments WHERE loan_id = $1 AND is_paid = FALSE)`
	if err := tx.QueryRow(ctx, query, loanID).Scan(&exists); err != nil {
		r.logger.ErrorContext(ctx, "Failed to check unpaid installments", "loan_id", loanID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func (r *LoanRepository) MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	sql := `UPDATE loans SET is_paid = TRUE, updated_at = NOW() WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sql, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark loan paid", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Loan paid update affected zero rows", "loan_id", loanID)
		return fmt.Errorf("%w: loan paid update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Loan marked fully paid in DB", "loan_id", loanID)
	return nil
}

func (r *LoanRepository) AdjustUsedCreditInTx(ctx context.Context, tx pgx.Tx, customerID int64, delta decimal.Decimal) error {
	sql := `UPDATE customers SET used_credit_limit = used_credit_limit + $1, updated_at = NOW() WHERE id = $2`
	cmdTag, err := tx.Exec(ctx, sql, delta, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to adjust used credit", "customer_id", customerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Used credit adjustment matched no customer", "customer_id", customerID)
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LoanRepository) AdjustUsedCreditByLoanInTx(ctx context.Context, tx pgx.Tx, loanID int64, delta decimal.Decimal) error {
	sql := `
        UPDATE customers
        SET used_credit_limit = used_credit_limit + $1, updated_at = NOW()
        WHERE id = (SELECT customer_id FROM loans WHERE id = $2)`

	cmdTag, err := tx.Exec(ctx, sql, delta, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to adjust used credit by loan", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Used credit adjustment matched no customer for loan", "loan_id", loanID)
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LoanRepository) GetOverdueLoans(ctx context.Context, asOf time.Time) ([]loan.OverdueLoan, error) {
	query := `
        SELECT l.id, l.customer_id, COUNT(*), MIN(i.due_date)
        FROM loan_installments i
        JOIN loans l ON l.id = i.loan_id
        WHERE i.is_paid = FALSE AND i.due_date < $1
        GROUP BY l.id, l.customer_id
        ORDER BY l.id`

	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query overdue loans", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	overdue := make([]loan.OverdueLoan, 0)
	for rows.Next() {
		var o loan.OverdueLoan
		if err := rows.Scan(&o.LoanID, &o.CustomerID, &o.Overdue, &o.OldestDue); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan overdue loan row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		overdue = append(overdue, o)
	}
	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating overdue loan rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return overdue, nil
}
