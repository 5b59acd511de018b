package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestResourceFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/api/v1/batches/:id/complete", "batches"},
		{"/api/v1/ledger/ingredients/:branch_id", "ledger"},
		{"/api/v2/transfers", "transfers"},
		{"/health", "health"},
		{"/", ""},
		{"/api/v1/:id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, resourceFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("v12"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vx"))
	assert.False(t, isVersionSegment("batches"))
}

func TestProfiling_LabelsRequestContext(t *testing.T) {
	router := gin.New()
	router.Use(Profiling(true))

	var labels map[string]string
	router.POST("/api/v1/batches/:id/start", func(c *gin.Context) {
		labels = map[string]string{}
		for _, k := range []string{ProfilingLabelMethod, ProfilingLabelRoute, ProfilingLabelResource} {
			labels[k], _ = pprof.Label(c.Request.Context(), k)
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/batches/1/start", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "POST", labels[ProfilingLabelMethod])
	assert.Equal(t, "/api/v1/batches/:id/start", labels[ProfilingLabelRoute])
	assert.Equal(t, "batches", labels[ProfilingLabelResource])
}

func TestProfiling_DisabledAndSkipped(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		router := gin.New()
		router.Use(Profiling(enabled))
		router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
