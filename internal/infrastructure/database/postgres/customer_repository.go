package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger.With("component", "CustomerRepository")}
}

const customerColumns = "id, name, surname, credit_limit, used_credit_limit, created_at, updated_at"

func (r *CustomerRepository) Save(ctx context.Context, c *customer.Customer) error {
	sql := `
        INSERT INTO customers (name, surname, credit_limit, used_credit_limit, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	status := "success"
	startTime := time.Now()

	err := r.db.QueryRow(ctx, sql, c.Name, c.Surname, c.CreditLimit, c.UsedCreditLimit).Scan(
		&c.CustomerID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("SaveCustomer", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert customer", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Customer created in DB", "customer_id", c.CustomerID)
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	status := "success"
	startTime := time.Now()

	var c customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&c.CustomerID, &c.Name, &c.Surname,
		&c.CreditLimit, &c.UsedCreditLimit,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("FindCustomerByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", "customer_id", customerID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer by ID", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &c, nil
}

func (r *CustomerRepository) FindByLoanID(ctx context.Context, loanID int64) (*customer.Customer, error) {
	query := `
        SELECT c.id, c.name, c.surname, c.credit_limit, c.used_credit_limit, c.created_at, c.updated_at
        FROM customers c
        JOIN loans l ON l.customer_id = c.id
        WHERE l.id = $1`

	var c customer.Customer
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&c.CustomerID, &c.Name, &c.Surname,
		&c.CreditLimit, &c.UsedCreditLimit,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "No customer found for loan", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to find customer by loan", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &c, nil
}

// Delete removes the customer row; loans and installments go with it via
// ON DELETE CASCADE on the foreign keys.
func (r *CustomerRepository) Delete(ctx context.Context, customerID int64) error {
	sql := `DELETE FROM customers WHERE id = $1`

	status := "success"
	startTime := time.Now()

	cmdTag, err := r.db.Exec(ctx, sql, customerID)
	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("DeleteCustomer", status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete customer", "customer_id", customerID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Delete matched no customer", "customer_id", customerID)
		return apperrors.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Customer deleted", "customer_id", customerID)
	return nil
}
