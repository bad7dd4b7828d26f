package enums

import "fmt"

// StockMovementReason labels why a variant's stock changed.
type StockMovementReason string

const (
	StockMovementReasonOrder       StockMovementReason = "order"
	StockMovementReasonSale        StockMovementReason = "sale"
	StockMovementReasonOrderCancel StockMovementReason = "order_cancel"
	StockMovementReasonSaleVoid    StockMovementReason = "sale_void"
	StockMovementReasonAdjustment  StockMovementReason = "adjustment"
)

var validStockMovementReasons = []StockMovementReason{
	StockMovementReasonOrder,
	StockMovementReasonSale,
	StockMovementReasonOrderCancel,
	StockMovementReasonSaleVoid,
	StockMovementReasonAdjustment,
}

// String implements fmt.Stringer.
func (s StockMovementReason) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockMovementReason.
func (s StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStockMovementReason converts raw input into a StockMovementReason.
func ParseStockMovementReason(value string) (StockMovementReason, error) {
	for _, candidate := range validStockMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement reason %q", value)
}
