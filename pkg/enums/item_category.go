package enums

// ItemCategory is the garment type attached to a wardrobe item.
type ItemCategory string

const (
	ItemCategoryTop       ItemCategory = "Top"
	ItemCategoryBottom    ItemCategory = "Bottom"
	ItemCategoryShoes     ItemCategory = "Shoes"
	ItemCategoryOuterwear ItemCategory = "Outerwear"
	ItemCategoryAccessory ItemCategory = "Accessory"
)

// ItemSectionOther collects items whose stored category is not recognized.
const ItemSectionOther = "Other"

// itemCategories is also the display order of wardrobe sections.
var itemCategories = set[ItemCategory]{
	ItemCategoryTop,
	ItemCategoryBottom,
	ItemCategoryShoes,
	ItemCategoryOuterwear,
	ItemCategoryAccessory,
}

// ItemCategories returns the categories in section order.
func ItemCategories() []ItemCategory {
	return append([]ItemCategory(nil), itemCategories...)
}

func (c ItemCategory) String() string { return string(c) }

func (c ItemCategory) IsValid() bool { return itemCategories.has(c) }

// ParseItemCategory accepts any casing, so "top" is ItemCategoryTop.
func ParseItemCategory(value string) (ItemCategory, error) {
	return itemCategories.parse("item category", value)
}
