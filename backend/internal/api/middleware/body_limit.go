package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"thunder-scheduler/backend/pkg/response"
)

// BodyLimit 请求体大小限制。路由组各自设置上限：普通 JSON 接口较小，CSV / ICS 导入较大。
// maxBytes <= 0 时不限制。
// Handler 读取超限时通过 c.Error 上报 *http.MaxBytesError 且未写响应的，由此处统一返回 413。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		for _, e := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(e.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				return
			}
		}
	}
}
