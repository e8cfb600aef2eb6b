package builder

import "slices"

// TagsUnion concatenates tag lists keeping the first occurrence of each
// tag. Nil lists and empty tags are skipped. It returns nil when the union
// is empty.
func TagsUnion(lists ...[]string) []string {
	var out []string
	for _, list := range lists {
		for _, tag := range list {
			if tag == "" || slices.Contains(out, tag) {
				continue
			}
			out = append(out, tag)
		}
	}
	return out
}
