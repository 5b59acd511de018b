package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erp/stockcore/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type movementBody struct {
	Note string `json:"note"`
}

func newBodyLimitRouter(limit int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), BodyLimit(limit))
	router.POST("/movements", func(c *gin.Context) {
		var req movementBody
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"note": req.Note})
	})
	router.GET("/balances", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

// chunked hides the length of r so the request carries no Content-Length
type chunked struct{ io.Reader }

func TestBodyLimit(t *testing.T) {
	small := `{"note":"weekly count"}`
	large := `{"note":"` + strings.Repeat("x", 256) + `"}`

	tests := []struct {
		name       string
		method     string
		path       string
		body       io.Reader
		wantStatus int
	}{
		{"declared body within limit", http.MethodPost, "/movements", strings.NewReader(small), http.StatusCreated},
		{"declared body over limit", http.MethodPost, "/movements", strings.NewReader(large), http.StatusRequestEntityTooLarge},
		{"chunked body over limit", http.MethodPost, "/movements", chunked{strings.NewReader(large)}, http.StatusRequestEntityTooLarge},
		{"chunked body within limit", http.MethodPost, "/movements", chunked{strings.NewReader(small)}, http.StatusCreated},
		{"request without body", http.MethodGet, "/balances", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, tt.body)
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			newBodyLimitRouter(64).ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusRequestEntityTooLarge {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeRequestTooLarge, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}
