package jobs

import "strings"

// ParseRoute extracts the job ID from a URL path like /api/analyze/{id}.
// apiPrefix should be like "/api/analyze/", idPrefix like "analysis-".
// An ID given without its prefix is normalized to include it. Paths with
// further segments are rejected.
func ParseRoute(path, apiPrefix, idPrefix string) (jobID string, ok bool) {
	if !strings.HasPrefix(path, apiPrefix) {
		return "", false
	}
	rest := strings.Trim(strings.TrimPrefix(path, apiPrefix), "/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	if !strings.HasPrefix(rest, idPrefix) {
		rest = idPrefix + rest
	}
	return rest, true
}
