package event

import "time"

// LoanOriginatedEvent announces a newly created loan. Monetary fields travel
// as strings to keep their 2-decimal representation exact on the wire.
type LoanOriginatedEvent struct {
	LoanID              int64     `json:"loanId"`
	CustomerID          int64     `json:"customerId"`
	LoanAmount          string    `json:"loanAmount"`
	NumberOfInstallment int       `json:"numberOfInstallment"`
	InterestRate        string    `json:"interestRate"`
	Timestamp           time.Time `json:"timestamp"`
}

// InstallmentsPaidEvent announces a settled payment allocation.
type InstallmentsPaidEvent struct {
	LoanID           int64     `json:"loanId"`
	InstallmentsPaid int       `json:"installmentsPaid"`
	TotalAmountSpent string    `json:"totalAmountSpent"`
	LoanFullyPaid    bool      `json:"loanFullyPaid"`
	Timestamp        time.Time `json:"timestamp"`
}
