package loan

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// TotalRepayment returns principal * (1 + rate). No rounding happens at this
// step; the product is persisted as-is on the loan.
func TotalRepayment(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Mul(rate.Add(one))
}

// InstallmentAmount splits a total repayment into equal installments, rounded
// half-up to 2 decimal places.
func InstallmentAmount(total decimal.Decimal, count int) decimal.Decimal {
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}

// AvailableLimit returns ceiling - used. The result is not clamped and may be
// negative when the customer is already overextended.
func AvailableLimit(creditLimit, usedLimit decimal.Decimal) decimal.Decimal {
	return creditLimit.Sub(usedLimit)
}

// InstallmentsPayable returns how many whole installments the payment covers.
// Truncating integer division: a payment worth 1.99 installments pays 1.
// A zero installment amount is the caller's bug and will panic, matching the
// contract that upstream validation keeps installment amounts positive.
func InstallmentsPayable(paymentAmount, installmentAmount decimal.Decimal) int {
	q, _ := paymentAmount.QuoRem(installmentAmount, 0)
	return int(q.IntPart())
}

// TotalForCount returns installmentAmount * count.
func TotalForCount(installmentAmount decimal.Decimal, count int) decimal.Decimal {
	return installmentAmount.Mul(decimal.NewFromInt(int64(count)))
}
