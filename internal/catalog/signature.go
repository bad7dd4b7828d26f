package catalog

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Signature computes the canonical identity of an attribute-value
// combination: the distinct value ids sorted ascending and joined. Neither
// selection order nor a repeated id changes the result, so {Red, XL},
// {XL, Red} and {Red, Red, XL} all collide.
func Signature(attributeValueIDs []uuid.UUID) string {
	seen := make(map[uuid.UUID]struct{}, len(attributeValueIDs))
	parts := make([]string, 0, len(attributeValueIDs))
	for _, id := range attributeValueIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		parts = append(parts, id.String())
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
