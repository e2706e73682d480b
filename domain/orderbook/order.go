package orderbook

import (
	"errors"
	"fmt"
	"time"
)

type Side int
type OrderType int

const (
	Buy Side = iota
	Sell
)

const (
	Limit OrderType = iota
	Market
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Opposite returns the side an order of s trades against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts "buy"/"bid" and "sell"/"ask".
func ParseSide(s string) (Side, error) {
	switch s {
	case "buy", "bid", "BUY", "BID":
		return Buy, nil
	case "sell", "ask", "SELL", "ASK":
		return Sell, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

var (
	ErrSymbolMismatch   = errors.New("orderbook: order symbol does not match book")
	ErrInvalidOrder     = errors.New("orderbook: invalid order")
	ErrDuplicateOrderID = errors.New("orderbook: order id already resting")
)

// Order is a trading intent. Only Quantity changes after creation, and
// only the book changes it while the order rests.
type Order struct {
	ID        uint64
	Timestamp uint64 // unix millis
	Side      Side
	Type      OrderType
	Price     Price
	Quantity  Quantity
	Symbol    string
}

// NewOrder stamps the order with the current wall clock.
func NewOrder(id uint64, side Side, otype OrderType, price Price, qty Quantity, symbol string) Order {
	return Order{
		ID:        id,
		Timestamp: uint64(time.Now().UnixMilli()),
		Side:      side,
		Type:      otype,
		Price:     price,
		Quantity:  qty,
		Symbol:    symbol,
	}
}

func (o Order) Validate() error {
	switch {
	case o.Side != Buy && o.Side != Sell:
		return fmt.Errorf("%w: side %d", ErrInvalidOrder, o.Side)
	case o.Type != Limit && o.Type != Market:
		return fmt.Errorf("%w: type %d", ErrInvalidOrder, o.Type)
	case o.Price <= 0:
		return fmt.Errorf("%w: price %s", ErrInvalidOrder, o.Price)
	case o.Quantity <= 0:
		return fmt.Errorf("%w: quantity %s", ErrInvalidOrder, o.Quantity)
	case o.Symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidOrder)
	}
	return nil
}

// entry is the book-owned resting node. It sits in exactly one level FIFO
// and is referenced by id from the book index.
type entry struct {
	Order
	seq   uint64
	level *PriceLevel
	next  *entry
	prev  *entry
}

func (e *entry) reset() { *e = entry{} }

// Trade is one matching step between the head bid and the head ask.
type Trade struct {
	Seq         uint64
	Symbol      string
	BuyOrderID  uint64
	SellOrderID uint64
	Price       Price
	Quantity    Quantity
	Timestamp   uint64
}
