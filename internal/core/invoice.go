package core

import (
	"net/url"
	"path"
	"strings"
)

// InvoiceURL turns a stored invoice path into a link. Absolute http(s) URLs
// are returned as-is; relative paths are joined onto base. Anything that
// cannot be resolved yields ok=false and the caller omits the link.
func InvoiceURL(base, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "undefined", "nil":
		return "", false
	}

	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", false
		}
		return u.String(), true
	}

	p := strings.ReplaceAll(raw, `\`, "/")
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	p = path.Clean("/" + p)
	if p == "/" {
		return "", false
	}

	b, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimPrefix(p, "/"))
	if err != nil {
		return "", false
	}
	if b.Path == "" {
		b.Path = "/"
	} else {
		b.Path += "/"
	}
	return b.ResolveReference(ref).String(), true
}
