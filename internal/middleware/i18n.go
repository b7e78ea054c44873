package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"

	"swiftapply/internal/i18n"
)

type localeContextKey struct{}

var LocaleKey = localeContextKey{}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N attaches the caller's locale to the request context. Resolution
// order: X-Locale header, Accept-Language, GeoIP country, configured
// default.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			locale := detectLocale(r, defaultLocale, lookup)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, lookup CountryLookup) string {
	if v := r.Header.Get("X-Locale"); v != "" {
		return normalizeLocale(v)
	}
	if v := firstAcceptLanguage(r.Header.Get("Accept-Language")); v != "" {
		return normalizeLocale(v)
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && strings.EqualFold(country, "ID") {
				return "id"
			}
		}
	}
	if fallback != "" {
		return normalizeLocale(fallback)
	}
	return "en"
}

func firstAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		locale := strings.TrimSpace(strings.Split(part, ";")[0])
		if locale != "" {
			return locale
		}
	}
	return ""
}

func normalizeLocale(locale string) string {
	if i18n.Match(locale) == language.Indonesian {
		return "id"
	}
	return "en"
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "en"
}
