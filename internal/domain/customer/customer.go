package customer

import (
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// Customer holds a credit ceiling and the portion of it currently consumed by
// outstanding loans. used <= ceiling is deliberately not an entity invariant;
// it is only checked at origination against the incremental request.
type Customer struct {
	CustomerID      int64
	Name            string
	Surname         string
	CreditLimit     decimal.Decimal
	UsedCreditLimit decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateNew is the validation pipeline for a customer registration request.
func ValidateNew(name, surname string, creditLimit, usedCreditLimit decimal.Decimal) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if name == "" {
		errs = append(errs, apperrors.FieldError{Field: "name", Message: "name is required"})
	}
	if surname == "" {
		errs = append(errs, apperrors.FieldError{Field: "surname", Message: "surname is required"})
	}
	if creditLimit.IsNegative() {
		errs = append(errs, apperrors.FieldError{Field: "creditLimit", Message: "credit limit must be greater than or equal to 0"})
	}
	if creditLimit.Exponent() < -2 {
		errs = append(errs, apperrors.FieldError{Field: "creditLimit", Message: "credit limit must have at most 2 decimal places"})
	}
	if usedCreditLimit.IsNegative() {
		errs = append(errs, apperrors.FieldError{Field: "usedCreditLimit", Message: "used credit limit must be greater than or equal to 0"})
	}
	if usedCreditLimit.Exponent() < -2 {
		errs = append(errs, apperrors.FieldError{Field: "usedCreditLimit", Message: "used credit limit must have at most 2 decimal places"})
	}
	return errs
}
