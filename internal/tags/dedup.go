package tags

import "sort"

// Categories is the fixed category order of catalog post tags. Flattened
// tag lists always follow this order.
var Categories = []string{"artist", "copyright", "character", "species", "lore", "general", "meta"}

// Deimplicate collapses a post's per-category tags so that only the most
// specific tags remain: any tag implied by another tag of the same category
// is dropped. Survivors are sorted within their category and categories are
// concatenated in Categories order. removed counts, summed over categories,
// the original tags that were implied by some tag of the category.
//
// A tag listed among its own implications is dropped like any other implied
// tag.
func Deimplicate(categories map[string][]string, implications ImplicationMap) (flat []string, removed int) {
	for _, category := range Categories {
		kept, n := deimplicateCategory(categories[category], implications)
		flat = append(flat, kept...)
		removed += n
	}
	return flat, removed
}

func deimplicateCategory(tags []string, implications ImplicationMap) ([]string, int) {
	original := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		original[t] = struct{}{}
	}

	redundant := make(map[string]struct{})
	for t := range original {
		for _, implied := range implications.Implied(t) {
			redundant[implied] = struct{}{}
		}
	}

	kept := make([]string, 0, len(original))
	removed := 0
	for t := range original {
		if _, ok := redundant[t]; ok {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	sort.Strings(kept)
	return kept, removed
}
