package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/version"
)

type StatusHandler struct {
	Started time.Time
}

func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, model.StatusReply{
		Status:  "ok",
		Uptime:  time.Since(h.Started).String(),
		Version: version.Version(),
	})
}
