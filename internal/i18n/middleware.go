package i18n

import "net/http"

// Middleware injects a localizer into every request context. A "lang" query
// parameter wins over the Accept-Language header, which wins over lang.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			langs := []string{r.Header.Get("Accept-Language"), lang}
			if q := r.URL.Query().Get("lang"); q != "" {
				langs = append([]string{q}, langs...)
			}
			ctx := WithLocalizer(r.Context(), NewLocalizer(langs...))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
