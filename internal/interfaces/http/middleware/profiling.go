package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grafana/pyroscope-go"
)

// Profiling label names
const (
	ProfilingLabelRoute    = "route"
	ProfilingLabelMethod   = "method"
	ProfilingLabelResource = "resource"
)

// skipProfilingPaths carry no useful profile labels
var skipProfilingPaths = map[string]bool{
	"/health": true,
}

// Profiling tags the handler's CPU samples with route labels so profiles can
// be split by endpoint. Disabled, it is a pass-through.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if skipProfilingPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		route := c.FullPath()
		labels := []string{ProfilingLabelMethod, c.Request.Method}
		if route != "" {
			labels = append(labels, ProfilingLabelRoute, route)
			if resource := resourceFromRoute(route); resource != "" {
				labels = append(labels, ProfilingLabelResource, resource)
			}
		}

		pyroscope.TagWrapper(c.Request.Context(), pyroscope.Labels(labels...), func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceFromRoute returns the first segment after the API version,
// e.g. "/api/v1/batches/:id/complete" -> "batches"
func resourceFromRoute(route string) string {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	for _, s := range segments {
		if s == "" || s == "api" || isVersionSegment(s) || strings.HasPrefix(s, ":") {
			continue
		}
		return s
	}
	return ""
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
