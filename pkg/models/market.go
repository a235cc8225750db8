package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Quote struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

type Balance struct {
	Asset            string
	WalletBalance    decimal.Decimal
	AvailableBalance decimal.Decimal
	UpdatedAt        time.Time
}

// LotSize is the quantity filter of a symbol.
type LotSize struct {
	Symbol   string
	MinQty   decimal.Decimal
	MaxQty   decimal.Decimal
	StepSize decimal.Decimal
}
