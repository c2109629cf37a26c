package domain

// Member is an account holder with an email identity and a spendable point
// balance. Point never drops below zero.
type Member struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Point int64  `json:"point"`
}
