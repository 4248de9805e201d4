package respond

import "github.com/gin-gonic/gin"

// JSON writes payload with status. Responses are marked no-store since they
// echo lab values back to the caller.
func JSON(c *gin.Context, status int, payload any) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, payload)
}
