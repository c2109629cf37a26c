package domain

import "time"

type OrderPlacedEvent struct {
	EventID       string    `json:"event_id"`
	OrderID       int64     `json:"order_id"`
	MemberEmail   string    `json:"member_email"`
	OptionID      int64     `json:"option_id"`
	Quantity      int       `json:"quantity"`
	TotalPrice    int64     `json:"total_price"`
	Message       string    `json:"message"`
	OrderDateTime time.Time `json:"order_date_time"`
}
