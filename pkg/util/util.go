package util

import (
	"net/url"
	"path"
	"strings"
)

// CleanPath returns p as a rooted, cleaned path. Any trailing slash is
// kept, as servers commonly treat it as significant.
func CleanPath(p string) string {
	cleaned := path.Join("/", p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}

	return cleaned
}

// JoinURL appends p to base, making sure exactly one slash separates
// them.
func JoinURL(base, p string) string {
	return strings.TrimRight(base, "/") + CleanPath(p)
}

// WithQuery appends the encoded values to u, if there are any.
func WithQuery(u string, values url.Values) string {
	queryString := values.Encode()
	if queryString == "" {
		return u
	}

	if strings.Contains(u, "?") {
		return u + "&" + queryString
	}
	return u + "?" + queryString
}
