package domain

// CartLine is one product entry in the cart with an aggregated quantity.
// A cart holds at most one line per product; a line never has a quantity
// below 1 (it is removed instead).
type CartLine struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Image     string  `json:"image"`
	Quantity  int     `json:"quantity"`
}

// Cart is the insertion-ordered collection of lines plus the cart panel
// visibility flag. Owned exclusively by the cart store.
type Cart struct {
	Lines []CartLine `json:"lines"`
	Open  bool       `json:"-"`
}

// TotalItems is the sum of quantities across all lines. Always derived,
// never maintained as a separate counter.
func (c *Cart) TotalItems() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is the sum of quantity*unit price across all lines.
func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for _, l := range c.Lines {
		total += float64(l.Quantity) * l.UnitPrice
	}
	return total
}
