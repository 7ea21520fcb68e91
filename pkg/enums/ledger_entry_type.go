package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type_enum enum in Postgres.
// Debits raise a retailer's exposure toward a wholesaler; credits and
// reversals lower it; adjustments carry a signed amount.
type LedgerEntryType string

const (
	LedgerEntryTypeDebit      LedgerEntryType = "debit"
	LedgerEntryTypeCredit     LedgerEntryType = "credit"
	LedgerEntryTypeAdjustment LedgerEntryType = "adjustment"
	LedgerEntryTypeReversal   LedgerEntryType = "reversal"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryTypeDebit,
	LedgerEntryTypeCredit,
	LedgerEntryTypeAdjustment,
	LedgerEntryTypeReversal,
}

// IsValid reports whether the value matches the canonical ledger entry enum.
func (t LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}
