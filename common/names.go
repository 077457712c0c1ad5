package common

import (
	"fmt"
	"strings"
)

// NormalizeExtensionNames normalizes list of extension names coming from the
// command line. Every element may itself be a comma separated list.
func NormalizeExtensionNames(in []string) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, item := range in {
		for _, s := range strings.Split(item, ",") {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			for i := 0; i < len(s); i++ {
				c := s[i]
				isDigit := c >= '0' && c <= '9'
				isLower := c >= 'a' && c <= 'z'
				if !isDigit && !isLower && c != '_' && c != '-' {
					return nil, fmt.Errorf("extension name must contain only a-z, 0-9, '_' or '-', got %q in %q", c, s)
				}
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out, nil
}
