package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string
	ClientOrderID string
	ProductID     string
	Side          OrderSide
	OrderType     OrderType
	Status        OrderStatus
	Price         decimal.Decimal
	Size          decimal.Decimal
	FilledSize    decimal.Decimal
	PostOnly      bool
	Time          time.Time
}
