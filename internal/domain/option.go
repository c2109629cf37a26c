package domain

// Option is a purchasable SKU under a product. Quantity is the remaining
// stock; Price is the unit price in points, inherited from the product.
type Option struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}
