package domain

import "github.com/shopspring/decimal"

// Cart is open until it is promoted to an order (InOrder). OwnerID is empty
// for the anonymous placeholder cart.
type Cart struct {
	ID            string          `db:"id"`
	OwnerID       string          `db:"owner_id"`
	ForAnonymous  bool            `db:"for_anonymous"`
	TotalProducts int             `db:"total_products"`
	FinalPrice    decimal.Decimal `db:"final_price"`
	InOrder       bool            `db:"in_order"`
	UpdatedAt     string          `db:"updated_at"`

	Items []CartProduct `db:"-"`
}

func (c Cart) IsEmpty() bool { return c.TotalProducts == 0 }

// MinorUnits converts the cart total to the smallest currency unit.
func (c Cart) MinorUnits() int64 { return MinorUnits(c.FinalPrice) }

func MinorUnits(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CartProduct is a cart line. FinalPrice is Qty times the product price at
// the moment the line was created or its quantity last changed.
type CartProduct struct {
	ID          string          `db:"id"`
	CartID      string          `db:"cart_id"`
	CustomerID  string          `db:"customer_id"`
	ProductKind Kind            `db:"product_kind"`
	ProductID   string          `db:"product_id"`
	Qty         int             `db:"qty"`
	FinalPrice  decimal.Decimal `db:"final_price"`

	Title     string          `db:"title"`
	Slug      string          `db:"slug"`
	Image     string          `db:"image"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

func (l CartProduct) Ref() ProductRef { return ProductRef{Kind: l.ProductKind, ID: l.ProductID} }

func (l CartProduct) ProductURL() string {
	return "/products/" + string(l.ProductKind) + "/" + l.Slug + "/"
}
