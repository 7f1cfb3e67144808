package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck обрабатывает запрос проверки работоспособности
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
