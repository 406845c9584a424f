package handlers

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRoutingProxy forwards /api/routing/<path> to upstream + "/<path>" so
// browsers can reach a public routing service through this origin.
func NewRoutingProxy(upstream, userAgent string, log *zap.Logger) (gin.HandlerFunc, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("routing proxy: parse upstream %q: %w", upstream, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("routing proxy: upstream %q must be an absolute url", upstream)
	}
	if log == nil {
		log = zap.NewNop()
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			path := r.In.URL.Path
			if i := strings.Index(path, "/api/routing"); i >= 0 {
				path = path[i+len("/api/routing"):]
			}

			r.Out.URL.Scheme = target.Scheme
			r.Out.URL.Host = target.Host
			r.Out.URL.Path = strings.TrimRight(target.Path, "/") + "/" + strings.TrimLeft(path, "/")
			r.Out.URL.RawPath = ""
			r.Out.URL.RawQuery = r.In.URL.RawQuery
			r.Out.Host = target.Host
			if userAgent != "" {
				r.Out.Header.Set("User-Agent", userAgent)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("routing proxy failed", zap.String("path", r.URL.Path), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"routing upstream unavailable"}`))
		},
	}

	return func(c *gin.Context) {
		proxy.ServeHTTP(c.Writer, c.Request)
	}, nil
}
