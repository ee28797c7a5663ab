package invite

import "strings"

// NewAddresses returns the addresses in after that were not in before, in
// the order of after. Comparison ignores case and surrounding whitespace;
// duplicates within after are reported once.
func NewAddresses(before, after []string) []string {
	seen := make(map[string]struct{}, len(before)+len(after))
	for _, addr := range before {
		seen[normalize(addr)] = struct{}{}
	}

	added := make([]string, 0)
	for _, addr := range after {
		trimmed := strings.TrimSpace(addr)
		key := normalize(trimmed)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		added = append(added, trimmed)
	}
	return added
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
