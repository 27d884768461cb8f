package i18n

import (
	"net/http"
)

// Middleware resolves the request locale from the Accept-Language header
// and stores it in the context. Notification and error texts are rendered
// in that locale when the response is written.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
	})
}

// MiddlewareFunc is the same as Middleware for a bare HandlerFunc
func MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := ParseAcceptLanguage(r.Header.Get("Accept-Language"))
		next(w, r.WithContext(WithLocale(r.Context(), locale)))
	}
}
