package router

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Resolution is the outcome of resolving a URL path against a Table.
type Resolution struct {
	// Path is the path as requested.
	Path string

	// CleanPath is Path relative to the base, without query string or
	// surrounding slashes.
	CleanPath string

	// Slug is the route key: an exact slug, a matched pattern, or the
	// synthesized fallback slug.
	Slug string

	Params Params
	Route  Route

	// Fallback is true when no table entry matched and Route.ViewPath is
	// the "slug/slug" guess.
	Fallback bool
}

// NormalizeBase returns base with a leading and a trailing slash.
func NormalizeBase(base string) string {
	if base == "" {
		return "/"
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// CleanPath strips the query string, the base path and surrounding slashes.
func CleanPath(base, path string) string {
	base = NormalizeBase(base)
	p, _, _ := strings.Cut(path, "?")

	if strings.HasPrefix(p, base) || strings.HasPrefix(p+"/", base) {
		if len(p) >= len(base) {
			p = p[len(base):]
		} else {
			p = ""
		}
	}
	return strings.Trim(p, "/")
}

// Slug derives the candidate slug from a clean path: the last segment
// without file extension, reduced to ASCII letters, digits and hyphens.
// Accented letters are folded to their base letter. An empty result or
// "index" yields def.
func Slug(cleanPath, def string) string {
	segment := cleanPath
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if segment == "" {
		return def
	}
	segment, _, _ = strings.Cut(segment, ".")

	var b strings.Builder
	for _, r := range norm.NFKD.String(segment) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			b.WriteRune(r)
		}
	}

	slug := b.String()
	if slug == "" || slug == "index" {
		return def
	}
	return slug
}

// Resolve finds the route for path.
//
// Lookup order: exact slug, then pattern routes in lexical key order, then
// the fallback guess "slug/slug". The fallback is never validated here; a
// missing view surfaces when the view is built.
func (t Table) Resolve(base, path string) Resolution {
	t = t.withDefaults()
	clean := CleanPath(base, path)
	slug := Slug(clean, t.Default)

	res := Resolution{
		Path:      path,
		CleanPath: clean,
		Slug:      slug,
		Params:    Params{},
	}

	if r, ok := t.Routes[slug]; ok {
		res.Route = r
		return res
	}

	for _, pattern := range t.patterns() {
		if params := matchPattern(pattern, clean); params != nil {
			res.Slug = pattern
			res.Params = params
			res.Route = t.Routes[pattern]
			return res
		}
	}

	res.Route = Route{ViewPath: slug + "/" + slug}
	res.Fallback = true
	return res
}

func (t Table) patterns() []string {
	var out []string
	for key := range t.Routes {
		if isPattern(key) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// URL returns the canonical browser URL for a clean path under base.
func URL(base, cleanPath string) string {
	return strings.Replace(NormalizeBase(base)+cleanPath, "//", "/", 1)
}
