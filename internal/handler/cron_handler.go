package handler

import (
	"net/http"

	"tipwall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CronHandler struct {
	sweep *service.SweepService
	log   logrus.FieldLogger
}

func NewCronHandler(sweep *service.SweepService, log logrus.FieldLogger) *CronHandler {
	return &CronHandler{sweep: sweep, log: log}
}

// RefundExpired runs one expiry sweep on demand.
func (h *CronHandler) RefundExpired(c *gin.Context) {
	report, err := h.sweep.Run(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("[Cron] Sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"refunded":   report.Refunded,
		"expired":    report.Expired,
		"reconciled": report.Reconciled,
		"pending":    report.Pending,
		"failed":     report.Failed,
	})
}
