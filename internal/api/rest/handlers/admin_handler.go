package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marketskills/subscription-service/internal/service"
	"go.uber.org/zap"
)

// AdminHandler административные операции
type AdminHandler struct {
	repair *service.RepairService
	log    *zap.Logger
}

// NewAdminHandler создает новый обработчик административных операций
func NewAdminHandler(repair *service.RepairService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		repair: repair,
		log:    log,
	}
}

// RepairSubscriptions обрабатывает POST /admin/subscriptions/repair.
// По умолчанию dry_run=true: чтобы реально писать, нужно явно
// передать dry_run=false.
func (h *AdminHandler) RepairSubscriptions(c *gin.Context) {
	dryRun := true
	if raw, ok := c.GetQuery("dry_run"); ok {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dry_run value"})
			return
		}
		dryRun = parsed
	}

	report, err := h.repair.Run(c.Request.Context(), dryRun)
	if err != nil {
		h.log.Error("Subscription repair failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "repair failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
