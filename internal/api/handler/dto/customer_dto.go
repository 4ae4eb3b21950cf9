package dto

import (
	"strconv"
	"time"

	"credit-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

type CreateCustomerRequest struct {
	Name            string          `json:"name"`
	Surname         string          `json:"surname"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	UsedCreditLimit decimal.Decimal `json:"usedCreditLimit"`
}

type CustomerResponse struct {
	CustomerID      string    `json:"customerId"`
	Name            string    `json:"name"`
	Surname         string    `json:"surname"`
	CreditLimit     string    `json:"creditLimit"`
	UsedCreditLimit string    `json:"usedCreditLimit"`
	AvailableLimit  string    `json:"availableLimit"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		CustomerID:      strconv.FormatInt(c.CustomerID, 10),
		Name:            c.Name,
		Surname:         c.Surname,
		CreditLimit:     c.CreditLimit.StringFixed(2),
		UsedCreditLimit: c.UsedCreditLimit.StringFixed(2),
		AvailableLimit:  c.CreditLimit.Sub(c.UsedCreditLimit).StringFixed(2),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}
