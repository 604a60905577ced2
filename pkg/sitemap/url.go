package sitemap

import (
	"strings"

	"sitemapgen/pkg/names"
)

const upperhex = "0123456789ABCDEF"

// NameURL returns the public page URL of a name record:
// <site>/names/<category>/<slug>, each segment percent-encoded.
func NameURL(siteURL string, rec names.Record) string {
	return strings.TrimRight(siteURL, "/") + "/names/" +
		EscapeComponent(rec.Category.String()) + "/" + EscapeComponent(rec.Slug)
}

// FileURL returns the public URL of a file in the output directory
func FileURL(siteURL, file string) string {
	return strings.TrimRight(siteURL, "/") + "/" + file
}

// EscapeComponent percent-encodes s so it is safe as a single URL path
// segment. Letters, digits and -_.!~*'() are kept; every other byte of the
// UTF-8 encoding is escaped.
func EscapeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
