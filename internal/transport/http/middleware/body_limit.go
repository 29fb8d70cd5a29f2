package middleware

import "net/http"

// BodyLimit caps request bodies on the mutating verbs. Zero disables the cap.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	mutating := map[string]bool{
		http.MethodPost:  true,
		http.MethodPut:   true,
		http.MethodPatch: true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes > 0 && mutating[r.Method] {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
