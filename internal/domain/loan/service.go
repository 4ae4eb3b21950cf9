package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// eligibilityWindowMonths is how far ahead of the payment date an unpaid
// installment may be due and still be payable.
const eligibilityWindowMonths = 3

// PaymentResult summarizes one payment allocation.
type PaymentResult struct {
	InstallmentsPaid int
	TotalAmountSpent decimal.Decimal
	LoanFullyPaid    bool
}

// Page is one page of loan summaries.
type Page struct {
	Items      []Loan
	Page       int
	Size       int
	TotalItems int64
}

// ScheduleCache caches a loan's installment listing. Implementations must
// treat a miss and an error identically: return ok=false.
type ScheduleCache interface {
	GetInstallments(ctx context.Context, loanID int64) ([]Installment, bool)
	SetInstallments(ctx context.Context, loanID int64, installments []Installment)
	Invalidate(ctx context.Context, loanID int64)
}

type LoanService interface {
	// CreateLoan validates the request against the customer's available credit,
	// originates the loan with its full schedule and raises the customer's used
	// credit by the total repayment amount, all in one transaction.
	CreateLoan(ctx context.Context, customerID int64, principal decimal.Decimal, numberOfInstallment int, interestRate decimal.Decimal) (*Loan, error)

	// ListLoans returns a filtered, paginated view of a customer's loans.
	ListLoans(ctx context.Context, filter Filter, page PageRequest) (*Page, error)

	// GetInstallments returns a loan's schedule in due-date order. A missing
	// loan is ErrNotFound; an existing loan always has installments.
	GetInstallments(ctx context.Context, loanID int64) ([]Installment, error)

	// PayInstallments applies amount to the loan's oldest eligible unpaid
	// installments, whole installments only.
	PayInstallments(ctx context.Context, loanID int64, amount decimal.Decimal) (*PaymentResult, error)
}

type loanService struct {
	repo            Repository
	customerService customer.CustomerService
	cache           ScheduleCache
	publisher       event.Publisher
	logger          *slog.Logger
	now             func() time.Time
}

func NewLoanService(repo Repository, cs customer.CustomerService, cache ScheduleCache, publisher event.Publisher, logger *slog.Logger) LoanService {
	if repo == nil {
		panic("loan repository cannot be nil")
	}
	if cs == nil {
		panic("customer service cannot be nil")
	}
	return &loanService{
		repo:            repo,
		customerService: cs,
		cache:           cache,
		publisher:       publisher,
		logger:          logger.With("component", "loanService"),
		now:             time.Now,
	}
}

func (s *loanService) CreateLoan(ctx context.Context, customerID int64, principal decimal.Decimal, numberOfInstallment int, interestRate decimal.Decimal) (createdLoan *Loan, err error) {
	s.logger.InfoContext(ctx, "Creating loan", "customerID", customerID, "principal", principal.String(), "installments", numberOfInstallment)

	if errs := ValidateOrigination(customerID, principal, interestRate, numberOfInstallment); len(errs) > 0 {
		s.logger.WarnContext(ctx, "Loan request failed validation", "failures", len(errs))
		return nil, errs
	}

	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer with ID %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	totalRepayment := TotalRepayment(principal, interestRate)
	available := AvailableLimit(cust.CreditLimit, cust.UsedCreditLimit)
	if available.LessThan(totalRepayment) {
		s.logger.WarnContext(ctx, "Loan request exceeds available credit",
			"customerID", customerID, "available", available.String(), "required", totalRepayment.String())
		return nil, fmt.Errorf("%w: required %s exceeds available %s",
			apperrors.ErrLimitExceeded, totalRepayment.String(), available.String())
	}

	newLoan := NewLoan(customerID, principal, interestRate, numberOfInstallment)
	schedule, err := newLoan.BuildSchedule(s.now())
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	createdLoan, err = s.repo.CreateLoanInTx(ctx, tx, newLoan, schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to save loan and schedule: %w", err)
	}

	if err = s.repo.AdjustUsedCreditInTx(ctx, tx, customerID, totalRepayment); err != nil {
		return nil, fmt.Errorf("failed to update customer used credit: %w", err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	monitoring.RecordLoanOriginated()
	s.publishLoanOriginated(ctx, createdLoan)
	s.logger.InfoContext(ctx, "Loan created", "loanID", createdLoan.ID, "customerID", customerID, "totalRepayment", totalRepayment.String())
	return createdLoan, nil
}

func (s *loanService) ListLoans(ctx context.Context, filter Filter, page PageRequest) (*Page, error) {
	if filter.CustomerID <= 0 {
		return nil, apperrors.ValidationErrors{{Field: "customerId", Message: "customer id is required"}}
	}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Size < 1 || page.Size > 100 {
		page.Size = 20
	}

	items, total, err := s.repo.ListLoans(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for customer %d: %w", filter.CustomerID, err)
	}
	return &Page{Items: items, Page: page.Page, Size: page.Size, TotalItems: total}, nil
}

func (s *loanService) GetInstallments(ctx context.Context, loanID int64) ([]Installment, error) {
	if s.cache != nil {
		if installments, ok := s.cache.GetInstallments(ctx, loanID); ok {
			return installments, nil
		}
	}

	installments, err := s.repo.GetInstallmentsByLoanID(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for loan %d: %w", loanID, err)
	}
	if len(installments) == 0 {
		// Distinguish an unknown loan from a loan without rows.
		if _, err := s.repo.GetLoanByID(ctx, loanID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
			}
			return nil, err
		}
		return installments, nil
	}

	if s.cache != nil {
		s.cache.SetInstallments(ctx, loanID, installments)
	}
	return installments, nil
}

// PayInstallments runs the whole allocation in one transaction: installment
// rows, customer used credit and the loan paid flag either all change or none do.
func (s *loanService) PayInstallments(ctx context.Context, loanID int64, amount decimal.Decimal) (result *PaymentResult, err error) {
	paymentDate := truncateToDay(s.now())
	s.logger.InfoContext(ctx, "Processing installment payment", "loanID", loanID, "amount", amount.String())

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		monitoring.RecordPayment("failure_internal")
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			monitoring.RecordPayment(paymentFailureStatus(err))
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	windowEnd := addCalendarMonths(paymentDate, eligibilityWindowMonths)
	eligible, err := s.repo.FindEligibleInstallmentsForUpdate(ctx, tx, loanID, paymentDate, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("could not load eligible installments for loan %d: %w", loanID, err)
	}
	if len(eligible) == 0 {
		err = fmt.Errorf("%w: loan %d", apperrors.ErrNoEligibleInstallments, loanID)
		return nil, err
	}

	// All installments of a loan share one amount by construction; the earliest
	// due entry is representative.
	installmentAmount := eligible[0].Amount
	numToPay := InstallmentsPayable(amount, installmentAmount)
	if numToPay == 0 {
		err = fmt.Errorf("%w: %s covers no installment of %s for loan %d",
			apperrors.ErrInsufficientPayment, amount.String(), installmentAmount.String(), loanID)
		return nil, err
	}
	if numToPay > len(eligible) {
		// The payment never reaches past the eligibility window.
		numToPay = len(eligible)
	}

	for i := 0; i < numToPay; i++ {
		eligible[i].MarkPaid(paymentDate)
		if err = s.repo.MarkInstallmentPaidInTx(ctx, tx, &eligible[i]); err != nil {
			return nil, fmt.Errorf("could not mark installment %d paid: %w", eligible[i].ID, err)
		}
	}

	totalPaid := TotalForCount(installmentAmount, numToPay)
	if err = s.repo.AdjustUsedCreditByLoanInTx(ctx, tx, loanID, totalPaid.Neg()); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			err = fmt.Errorf("%w: customer owning loan %d not found", apperrors.ErrNotFound, loanID)
		}
		return nil, err
	}

	stillUnpaid, err := s.repo.HasUnpaidInstallmentsInTx(ctx, tx, loanID)
	if err != nil {
		return nil, fmt.Errorf("could not check remaining installments for loan %d: %w", loanID, err)
	}
	if !stillUnpaid {
		if err = s.repo.MarkLoanPaidInTx(ctx, tx, loanID); err != nil {
			return nil, fmt.Errorf("could not mark loan %d paid: %w", loanID, err)
		}
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, loanID)
	}
	monitoring.RecordPayment("success")

	result = &PaymentResult{
		InstallmentsPaid: numToPay,
		TotalAmountSpent: totalPaid,
		LoanFullyPaid:    !stillUnpaid,
	}
	s.publishInstallmentsPaid(ctx, loanID, result)
	s.logger.InfoContext(ctx, "Payment processed", "loanID", loanID,
		"installmentsPaid", result.InstallmentsPaid, "totalSpent", result.TotalAmountSpent.String(), "fullyPaid", result.LoanFullyPaid)
	return result, nil
}

func (s *loanService) publishLoanOriginated(ctx context.Context, l *Loan) {
	if s.publisher == nil {
		return
	}
	evt := event.LoanOriginatedEvent{
		LoanID:              l.ID,
		CustomerID:          l.CustomerID,
		LoanAmount:          l.LoanAmount.String(),
		NumberOfInstallment: l.NumberOfInstallment,
		InterestRate:        l.InterestRate.String(),
		Timestamp:           s.now(),
	}
	if err := s.publisher.PublishLoanOriginated(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan originated event", "loanID", l.ID, "error", err)
	}
}

func (s *loanService) publishInstallmentsPaid(ctx context.Context, loanID int64, res *PaymentResult) {
	if s.publisher == nil {
		return
	}
	evt := event.InstallmentsPaidEvent{
		LoanID:           loanID,
		InstallmentsPaid: res.InstallmentsPaid,
		TotalAmountSpent: res.TotalAmountSpent.String(),
		LoanFullyPaid:    res.LoanFullyPaid,
		Timestamp:        s.now(),
	}
	if err := s.publisher.PublishInstallmentsPaid(ctx, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish installments paid event", "loanID", loanID, "error", err)
	}
}

func paymentFailureStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrNoEligibleInstallments):
		return "failure_no_eligible"
	case errors.Is(err, apperrors.ErrInsufficientPayment):
		return "failure_amount"
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	default:
		return "failure_internal"
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// addCalendarMonths advances t by whole calendar months, clamping to the last
// day of the target month instead of rolling over: Nov 30 plus 3 months is
// Feb 28, not Mar 2.
func addCalendarMonths(t time.Time, months int) time.Time {
	target := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	day := t.Day()
	if last := target.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return target.AddDate(0, 0, day-1)
}
