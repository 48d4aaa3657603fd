package stats

import (
	"strings"

	"github.com/dmaes/schemapack/internal/config"
)

// Categorize assigns every table to exactly one category bucket. The
// category list is walked in order and the first category with a matching
// keyword wins; tables no keyword matches land in the catch-all bucket.
// Every configured bucket appears in the result, empty or not, so the
// union of buckets always equals the table set.
func Categorize(tableNames []string, categories []config.Category) []CategoryBucket {
	buckets := make([]CategoryBucket, len(categories)+1)
	for i, cat := range categories {
		buckets[i] = CategoryBucket{Name: cat.Name, Tables: []string{}}
	}
	buckets[len(categories)] = CategoryBucket{Name: config.DefaultCategory, Tables: []string{}}

	for _, name := range tableNames {
		lower := strings.ToLower(name)
		idx := len(categories)
	match:
		for i, cat := range categories {
			for _, kw := range cat.Keywords {
				if strings.Contains(lower, kw) {
					idx = i
					break match
				}
			}
		}
		buckets[idx].Tables = append(buckets[idx].Tables, name)
	}

	return buckets
}
