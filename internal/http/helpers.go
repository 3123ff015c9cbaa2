package http

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"carteira/internal/auth"
)

// formatBRL formats an amount as Brazilian reais (e.g. "R$ 1.234,56").
func formatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// userID returns the authenticated caller set by requireAuth.
func userID(r *http.Request) string {
	return auth.UserID(r.Context())
}

// cacheKey scopes a cached response to the caller and the full request.
func cacheKey(r *http.Request) string {
	return userID(r) + "|" + r.URL.Path + "?" + r.URL.RawQuery
}

// userPrefix selects every cache entry of one user.
func userPrefix(userID string) string {
	return userID + "|"
}
