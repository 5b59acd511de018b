package middleware

import (
	"net/http"

	"github.com/erp/stockcore/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// DefaultBodyLimit bounds ledger request bodies. A document with a few
// thousand lines stays well under it.
const DefaultBodyLimit int64 = 1 << 20

// BodyLimit rejects requests whose declared length exceeds maxBytes and caps
// the reader for the rest, so chunked bodies fail inside binding with
// *http.MaxBytesError. HandleValidationError maps that to 413 as well.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			abortWithCode(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
