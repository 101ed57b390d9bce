package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dairy-portal-api/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request latency and status per route pattern. Probe and
// scrape endpoints are not observed; requests that match no route share one
// label so unknown paths cannot grow the series set.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := map[string]struct{}{"/metrics": {}, "/health": {}, "/ready": {}}
	for _, path := range skip {
		skipped[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
