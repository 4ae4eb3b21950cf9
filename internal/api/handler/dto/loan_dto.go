package dto

import (
	"fmt"
	"strconv"
	"time"

	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// CreateLoanRequest carries a loan origination request. Monetary fields
// unmarshal through decimal, so both JSON numbers and quoted strings are
// accepted and the written scale survives intact.
type CreateLoanRequest struct {
	CustomerID          int64           `json:"customerId"`
	LoanAmount          decimal.Decimal `json:"loanAmount"`
	NumberOfInstallment int             `json:"numberOfInstallment"`
	InterestRate        decimal.Decimal `json:"interestRate"`
}

type PayInstallmentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *PayInstallmentRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("payment amount must be greater than zero")
	}
	return nil
}

type LoanResponse struct {
	ID                  string    `json:"id"`
	CustomerID          string    `json:"customerId"`
	LoanAmount          string    `json:"loanAmount"`
	NumberOfInstallment int       `json:"numberOfInstallment"`
	InterestRate        string    `json:"interestRate"`
	IsPaid              bool      `json:"isPaid"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type InstallmentResponse struct {
	ID          string  `json:"id"`
	LoanID      string  `json:"loanId"`
	Amount      string  `json:"amount"`
	PaidAmount  *string `json:"paidAmount,omitempty"`
	DueDate     string  `json:"dueDate"`
	PaymentDate *string `json:"paymentDate,omitempty"`
	IsPaid      bool    `json:"isPaid"`
}

type PaymentResultResponse struct {
	LoanID           string `json:"loanId"`
	InstallmentsPaid int    `json:"installmentsPaid"`
	TotalAmountSpent string `json:"totalAmountSpent"`
	LoanFullyPaid    bool   `json:"loanFullyPaid"`
}

type LoanPageResponse struct {
	Items      []LoanResponse `json:"items"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalItems int64          `json:"totalItems"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error   ErrorDetail   `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	return LoanResponse{
		ID:                  strconv.FormatInt(l.ID, 10),
		CustomerID:          strconv.FormatInt(l.CustomerID, 10),
		LoanAmount:          l.LoanAmount.StringFixed(2),
		NumberOfInstallment: l.NumberOfInstallment,
		InterestRate:        l.InterestRate.String(),
		IsPaid:              l.IsPaid,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func NewInstallmentResponse(inst *loan.Installment) InstallmentResponse {
	resp := InstallmentResponse{
		ID:      strconv.FormatInt(inst.ID, 10),
		LoanID:  strconv.FormatInt(inst.LoanID, 10),
		Amount:  inst.Amount.StringFixed(2),
		DueDate: inst.DueDate.Format(dateLayout),
		IsPaid:  inst.IsPaid,
	}
	if inst.PaidAmount.Valid {
		s := inst.PaidAmount.Decimal.StringFixed(2)
		resp.PaidAmount = &s
	}
	if inst.PaymentDate != nil {
		s := inst.PaymentDate.Format(dateLayout)
		resp.PaymentDate = &s
	}
	return resp
}

func NewInstallmentListResponse(installments []loan.Installment) []InstallmentResponse {
	out := make([]InstallmentResponse, len(installments))
	for i := range installments {
		out[i] = NewInstallmentResponse(&installments[i])
	}
	return out
}

func NewPaymentResultResponse(loanID int64, res *loan.PaymentResult) PaymentResultResponse {
	return PaymentResultResponse{
		LoanID:           strconv.FormatInt(loanID, 10),
		InstallmentsPaid: res.InstallmentsPaid,
		TotalAmountSpent: res.TotalAmountSpent.StringFixed(2),
		LoanFullyPaid:    res.LoanFullyPaid,
	}
}

func NewLoanPageResponse(page *loan.Page) LoanPageResponse {
	items := make([]LoanResponse, len(page.Items))
	for i := range page.Items {
		items[i] = NewLoanResponse(&page.Items[i])
	}
	return LoanPageResponse{
		Items:      items,
		Page:       page.Page,
		Size:       page.Size,
		TotalItems: page.TotalItems,
	}
}
