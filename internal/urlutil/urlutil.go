// Package urlutil provides URL manipulation helpers.
package urlutil

import "strings"

// NormalizeBaseURL prepares a base URL for path joining: a missing
// scheme defaults to http and the trailing slash is stripped.
func NormalizeBaseURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}

	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimSuffix(baseURL, "/")
}

// JoinPath joins a base URL with a path, ensuring a single slash at the
// seam.
func JoinPath(baseURL, path string) string {
	if baseURL == "" {
		return path
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return baseURL + path
}

// IsRemoteURL reports whether a URL is fetchable over HTTP. Includes
// protocol-relative URLs; relative and local paths are not remote.
func IsRemoteURL(u string) bool {
	return strings.HasPrefix(u, "http://") ||
		strings.HasPrefix(u, "https://") ||
		strings.HasPrefix(u, "//")
}
