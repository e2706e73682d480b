package orderbook

// PriceLevel is a FIFO queue at a single price.
type PriceLevel struct {
	Price Price

	head *entry
	tail *entry

	totalQty   Quantity
	orderCount int
}

func (p *PriceLevel) enqueue(e *entry) {
	e.level = p
	if p.head == nil {
		p.head = e
		p.tail = e
	} else {
		p.tail.next = e
		e.prev = p.tail
		p.tail = e
	}
	p.totalQty += e.Quantity
	p.orderCount++
}

// remove unlinks e from anywhere in the queue in O(1).
func (p *PriceLevel) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		p.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		p.tail = e.prev
	}
	e.next = nil
	e.prev = nil
	e.level = nil

	p.totalQty -= e.Quantity
	p.orderCount--
}

// fill reduces the resting quantity of e, which must belong to p.
func (p *PriceLevel) fill(e *entry, qty Quantity) {
	e.Quantity -= qty
	p.totalQty -= qty
}

func (p *PriceLevel) Empty() bool { return p.head == nil }

func (p *PriceLevel) TotalQuantity() Quantity { return p.totalQty }

func (p *PriceLevel) OrderCount() int { return p.orderCount }

// Orders returns copies of the resting orders in priority order.
func (p *PriceLevel) Orders() []Order {
	out := make([]Order, 0, p.orderCount)
	for e := p.head; e != nil; e = e.next {
		out = append(out, e.Order)
	}
	return out
}

func (p *PriceLevel) level() Level {
	return Level{Price: p.Price, Quantity: p.totalQty, Orders: p.orderCount}
}
