package gateway

import (
	"net/http"
	"net/url"
	"strings"
)

// origins - allow-list of normalized origins.
type origins struct {
	all  bool
	list map[string]struct{}
}

func newOrigins(allowed []string, logger Logger) origins {
	o := origins{list: map[string]struct{}{}}
	for _, origin := range allowed {
		trimmed := strings.TrimSpace(origin)
		switch {
		case trimmed == "":
			continue
		case trimmed == "*":
			o.all = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			logError(logger, "Ignoring invalid origin:", origin)
			continue
		}
		o.list[normalized] = struct{}{}
	}
	return o
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// allowed - requests without Origin header do not come from browser and are allowed,
// empty allow-list means the same origin only.
func (o origins) allowed(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || o.all {
		return true
	}
	origin, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	if len(o.list) == 0 {
		return strings.EqualFold(strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://"), r.Host)
	}
	_, ok = o.list[origin]
	return ok
}
