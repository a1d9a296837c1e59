package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide identifies the direction of a recorded trade
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
	TradeSideSwap TradeSide = "SWAP"
)

// OrderType identifies how the order was priced
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Trade is one row of the append-only trade history. The history is capped:
// only the most recent entries are retained, older rows are pruned.
type Trade struct {
	ID        int64           `json:"id"`
	Market    string          `json:"market"`
	Side      TradeSide       `json:"side"`
	Size      decimal.Decimal `json:"size"`
	Price     decimal.Decimal `json:"price"`
	OrderType OrderType       `json:"orderType"`
	Status    string          `json:"status"`
	TradeID   *string         `json:"tradeId,omitempty"` // external/simulated trade identifier
	CreatedAt time.Time       `json:"createdAt"`
}
