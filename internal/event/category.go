package event

// Category is one of the fixed event categories.
type Category string

const (
	CategoryMusic  Category = "Music"
	CategoryTech   Category = "Tech"
	CategorySports Category = "Sports"
	CategorySocial Category = "Social"
)

// CategoryAll is the filter value that matches every category. It is never
// stored on an event.
const CategoryAll = "All"

// Categories returns the enumeration in display order.
func Categories() []Category {
	return []Category{CategoryMusic, CategoryTech, CategorySports, CategorySocial}
}

// FilterOptions returns the values offered by category selectors, "All" first.
func FilterOptions() []string {
	opts := []string{CategoryAll}
	for _, c := range Categories() {
		opts = append(opts, string(c))
	}
	return opts
}

// Valid reports whether c is part of the enumeration. Comparison is exact.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}
