package domain

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       float64
	Image       string
	Category    string
	Subcategory string
	OnSale      bool
}

// CartLine builds the line inserted when this product is added to a cart.
func (p *Product) CartLine() CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Quantity:  1,
	}
}
