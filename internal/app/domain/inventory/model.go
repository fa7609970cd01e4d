package inventory

// Item is a consumable tracked in stock.
type Item struct {
	ID       string `json:"id" db:"id"`
	StudioID string `json:"studio_id" db:"studio_id"`
	ItemName string `json:"item_name" db:"item_name"`
	Quantity int    `json:"quantity" db:"quantity"`
	MinStock int    `json:"min_stock" db:"min_stock"`
	Category string `json:"category" db:"category"`
}

// Low reports whether the item is below its reorder threshold.
func (i Item) Low() bool {
	return i.Quantity < i.MinStock
}
