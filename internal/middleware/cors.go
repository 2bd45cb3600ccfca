package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS 返回跨域中间件。origins 中包含 "*" 时允许任意来源，为空时拒绝所有跨域请求。
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}

	opts := cors.Options{
		AllowedOrigins: allowed,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
	}
	if len(allowed) == 0 {
		// rs/cors 把空列表当作 "*"
		opts.AllowOriginFunc = func(string) bool { return false }
	}

	return cors.New(opts).Handler
}
