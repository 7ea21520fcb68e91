package enums

import "fmt"

// PaymentMode records how a retailer settles an order.
type PaymentMode string

const (
	PaymentModeCredit         PaymentMode = "credit"
	PaymentModeCashOnDelivery PaymentMode = "cash_on_delivery"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCredit,
	PaymentModeCashOnDelivery,
}

// IsValid reports whether the value is a known PaymentMode.
func (m PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
