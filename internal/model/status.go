package model

type OrderStatus string

const (
	StatusCreated   OrderStatus = "C"
	StatusAccepted  OrderStatus = "A"
	StatusPreparing OrderStatus = "P"
	StatusDelivery  OrderStatus = "D"
	StatusDone      OrderStatus = "DN"
)

var statusLabels = map[OrderStatus]string{
	StatusCreated:   "created",
	StatusAccepted:  "accepted",
	StatusPreparing: "preparing",
	StatusDelivery:  "out for delivery",
	StatusDone:      "done",
}

// statusRank orders statuses for listing; unknown statuses sort last.
var statusRank = map[OrderStatus]int{
	StatusCreated:   0,
	StatusAccepted:  1,
	StatusPreparing: 2,
	StatusDelivery:  3,
	StatusDone:      4,
}

func (s OrderStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s OrderStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Rank is the position of s in the order lifecycle.
func (s OrderStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return len(statusRank)
}

// Initial reports whether the order has not started cooking yet.
func (s OrderStatus) Initial() bool {
	return s == StatusCreated || s == StatusAccepted
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "C"
	PaymentCard   PaymentMethod = "CD"
	PaymentOnline PaymentMethod = "O"
)

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCash:
		return "cash on delivery"
	case PaymentCard:
		return "card on delivery"
	case PaymentOnline:
		return "card online"
	case "":
		return "not set"
	}
	return string(p)
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case "", PaymentCash, PaymentCard, PaymentOnline:
		return true
	}
	return false
}
