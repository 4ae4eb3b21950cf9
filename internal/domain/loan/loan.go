package loan

import (
	"fmt"
	"time"

	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// AllowedInstallmentCounts are the only schedule lengths a loan may have.
var AllowedInstallmentCounts = []int{6, 9, 12, 24}

var (
	MinPrincipal    = decimal.NewFromInt(100)
	MinInterestRate = decimal.RequireFromString("0.10")
	MaxInterestRate = decimal.RequireFromString("0.50")
)

// Loan is an originated credit. LoanAmount holds the full repayment amount
// (principal * (1 + rate)), not the raw principal, so later allocation math
// never has to re-derive it.
type Loan struct {
	ID                  int64
	CustomerID          int64
	LoanAmount          decimal.Decimal
	NumberOfInstallment int
	InterestRate        decimal.Decimal
	IsPaid              bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Installments        []Installment
}

// Installment is one slice of a loan's repayment schedule. It is created once
// at origination and mutated exactly once, when a payment marks it paid.
// PaidAmount and PaymentDate stay null until then.
type Installment struct {
	ID          int64
	LoanID      int64
	Amount      decimal.Decimal
	PaidAmount  decimal.NullDecimal
	DueDate     time.Time
	PaymentDate *time.Time
	IsPaid      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MarkPaid settles the installment in full at the given date.
func (i *Installment) MarkPaid(paymentDate time.Time) {
	i.PaidAmount = decimal.NullDecimal{Decimal: i.Amount, Valid: true}
	i.PaymentDate = &paymentDate
	i.IsPaid = true
	i.UpdatedAt = paymentDate
}

// NewLoan builds a loan for the given request, storing the total repayment
// amount. Inputs are assumed to have passed ValidateOrigination.
func NewLoan(customerID int64, principal, interestRate decimal.Decimal, numberOfInstallment int) *Loan {
	return &Loan{
		CustomerID:          customerID,
		LoanAmount:          TotalRepayment(principal, interestRate),
		NumberOfInstallment: numberOfInstallment,
		InterestRate:        interestRate,
	}
}

// BuildSchedule emits the loan's installments in due-date order. Every
// installment carries the same half-up rounded amount; the first is due on the
// first day of the month after now, each following one month later. The sum of
// the installments may drift from LoanAmount by up to (count-1) cents, which
// is accepted rounding slippage and deliberately not corrected.
func (l *Loan) BuildSchedule(now time.Time) ([]Installment, error) {
	if l.NumberOfInstallment <= 0 {
		return nil, fmt.Errorf("%w: loan has non-positive installment count %d", apperrors.ErrInternalServer, l.NumberOfInstallment)
	}

	amount := InstallmentAmount(l.LoanAmount, l.NumberOfInstallment)
	firstDue := firstOfNextMonth(now)

	schedule := make([]Installment, 0, l.NumberOfInstallment)
	for i := 0; i < l.NumberOfInstallment; i++ {
		schedule = append(schedule, Installment{
			Amount:  amount,
			DueDate: firstDue.AddDate(0, i, 0),
		})
	}
	return schedule, nil
}

func firstOfNextMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
}

// ValidateOrigination is the explicit validation pipeline for a loan request.
// It returns every failed field check; an empty slice means the request is
// structurally valid. The cross-field credit limit check lives in the service
// because it needs the customer record.
func ValidateOrigination(customerID int64, principal, interestRate decimal.Decimal, numberOfInstallment int) apperrors.ValidationErrors {
	var errs apperrors.ValidationErrors

	if customerID <= 0 {
		errs = append(errs, apperrors.FieldError{Field: "customerId", Message: "customer id is required"})
	}
	if principal.LessThan(MinPrincipal) {
		errs = append(errs, apperrors.FieldError{Field: "loanAmount", Message: "loan amount must be at least 100"})
	}
	if principal.Exponent() < -2 {
		errs = append(errs, apperrors.FieldError{Field: "loanAmount", Message: "loan amount must have at most 2 decimal places"})
	}
	if !allowedCount(numberOfInstallment) {
		errs = append(errs, apperrors.FieldError{Field: "numberOfInstallment", Message: "value must be one of 6, 9, 12, 24"})
	}
	if interestRate.LessThan(MinInterestRate) || interestRate.GreaterThan(MaxInterestRate) {
		errs = append(errs, apperrors.FieldError{Field: "interestRate", Message: "interest rate must be between 0.10 and 0.50"})
	}
	if interestRate.Exponent() < -2 {
		errs = append(errs, apperrors.FieldError{Field: "interestRate", Message: "interest rate must have at most 2 decimal places"})
	}
	return errs
}

func allowedCount(n int) bool {
	for _, v := range AllowedInstallmentCounts {
		if v == n {
			return true
		}
	}
	return false
}
