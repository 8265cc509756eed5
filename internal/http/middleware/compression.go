package middleware

import (
	"net/http"
)

// SkipCompressionForStreams wraps a compression middleware so that
// MPEG-TS streaming endpoints bypass it. Compressing an open-ended
// transport stream buffers chunks and breaks client timing.
func SkipCompressionForStreams(compressionHandler func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressedHandler := compressionHandler(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsStreamingPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			compressedHandler.ServeHTTP(w, r)
		})
	}
}
