package domain

import "time"

// Order is an immutable record of a completed purchase. It is only ever
// created by a successful order placement.
type Order struct {
	ID            int64     `json:"id"`
	MemberID      int64     `json:"-"`
	OptionID      int64     `json:"optionId"`
	Quantity      int       `json:"quantity"`
	Message       string    `json:"message"`
	OrderDateTime time.Time `json:"orderDateTime"`
}
