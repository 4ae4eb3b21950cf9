package customer

import "context"

type CustomerRepository interface {
	// Save inserts the customer and fills in its generated id and timestamps.
	Save(ctx context.Context, cust *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	// FindByLoanID resolves the customer owning the given loan.
	FindByLoanID(ctx context.Context, loanID int64) (*Customer, error)

	// Delete removes the customer. Loans and installments go with it, the
	// schema cascades ownership.
	Delete(ctx context.Context, customerID int64) error
}
