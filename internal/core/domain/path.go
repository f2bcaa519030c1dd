package domain

import "path/filepath"

// NormalizePath returns the absolute, cleaned form of p.
// If the working directory cannot be determined, the cleaned path is returned.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}

// NormalizePaths interns the normalized form of every path.
func NormalizePaths(paths []string) []InternedString {
	res := make([]InternedString, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		res = append(res, NewInternedString(NormalizePath(p)))
	}
	return res
}
