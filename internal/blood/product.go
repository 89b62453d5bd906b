package blood

import "time"

// ProductType identifies the processed blood product of a collected unit.
type ProductType string

const (
	ProductWholeBlood ProductType = "whole_blood"
	ProductRedCells   ProductType = "red_cells"
	ProductPlatelets  ProductType = "platelets"
	ProductPlasma     ProductType = "plasma"
	ProductWhiteCells ProductType = "white_cells"
	ProductStemCells  ProductType = "stem_cells"
	ProductBoneMarrow ProductType = "bone_marrow"
	ProductCordBlood  ProductType = "cord_blood"
)

// shelfLifeDays is the maximum usable duration per product after collection.
var shelfLifeDays = map[ProductType]int{
	ProductWholeBlood: 42,
	ProductRedCells:   42,
	ProductPlatelets:  5,
	ProductPlasma:     365,
	ProductWhiteCells: 1,
	ProductStemCells:  365,
	ProductBoneMarrow: 1,
	ProductCordBlood:  365,
}

// defaultShelfLifeDays applies when the product type is unknown or missing;
// whole blood is the conservative baseline.
const defaultShelfLifeDays = 42

// ShelfLife returns the usable duration of a product after collection.
func ShelfLife(product ProductType) time.Duration {
	days, ok := shelfLifeDays[product]
	if !ok {
		days = defaultShelfLifeDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// ExpiryAt computes the expiry timestamp for a unit of the given product
// collected at the given time. Pure and deterministic.
func ExpiryAt(collectedAt time.Time, product ProductType) time.Time {
	return collectedAt.Add(ShelfLife(product))
}
