package middleware

import "net/http"

// MaxBodySize ограничивает размер тела запроса (CF_MAX_REQUEST_BODY).
// Превышение обнаруживается при чтении тела: декодер получает *http.MaxBytesError.
func MaxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
