package enums

import "fmt"

// LedgerEntryType maps to the ledger_entry_type enum in Postgres.
type LedgerEntryType string

const (
	LedgerEntryReceipt       LedgerEntryType = "RECEIPT"
	LedgerEntryOrderAllocate LedgerEntryType = "ORDER_ALLOCATE"
	LedgerEntryOrderRelease  LedgerEntryType = "ORDER_RELEASE"
	LedgerEntryAdjustment    LedgerEntryType = "ADJUSTMENT"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryReceipt,
	LedgerEntryOrderAllocate,
	LedgerEntryOrderRelease,
	LedgerEntryAdjustment,
}

// IsValid reports whether the value matches the canonical ledger_entry_type enum.
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

// LedgerSource maps to the ledger_source enum in Postgres.
type LedgerSource string

const (
	LedgerSourceNabisOrder       LedgerSource = "NABIS_ORDER"
	LedgerSourceWmsSync          LedgerSource = "WMS_SYNC"
	LedgerSourceManualAdjustment LedgerSource = "MANUAL_ADJUSTMENT"
	LedgerSourceWmsOutbound      LedgerSource = "WMS_OUTBOUND"
)

var validLedgerSources = []LedgerSource{
	LedgerSourceNabisOrder,
	LedgerSourceWmsSync,
	LedgerSourceManualAdjustment,
	LedgerSourceWmsOutbound,
}

// IsValid reports whether the value matches the canonical ledger_source enum.
func (s LedgerSource) IsValid() bool {
	for _, candidate := range validLedgerSources {
		if candidate == s {
			return true
		}
	}
	return false
}
