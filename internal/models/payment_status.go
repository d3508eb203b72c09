package models

// DerivePaymentStatus computes a booking's payment status from its totals and
// the sum of completed payments. Every mutation path goes through this one
// function so the derivation cannot drift between call sites.
func DerivePaymentStatus(totalAmount, depositAmount, paidSum int64) string {
	if paidSum >= totalAmount {
		return PaymentStatusFullyPaid
	}
	if paidSum > 0 && paidSum >= depositAmount {
		return PaymentStatusDepositPaid
	}
	return PaymentStatusPending
}

// RemainingAmount is the unpaid balance, floored at zero.
func RemainingAmount(totalAmount, paidSum int64) int64 {
	if paidSum >= totalAmount {
		return 0
	}
	return totalAmount - paidSum
}
