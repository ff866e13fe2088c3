package handler

import (
	"errors"
	"net/http"
	"time"

	"tipwall/internal/middleware"
	"tipwall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type TipHandler struct {
	tips       *service.TipService
	settlement *service.SettlementService
	log        logrus.FieldLogger
}

func NewTipHandler(tips *service.TipService, settlement *service.SettlementService, log logrus.FieldLogger) *TipHandler {
	registerValidators()
	return &TipHandler{tips: tips, settlement: settlement, log: log}
}

type createTipRequest struct {
	Creator      string          `json:"creator" binding:"required"`
	TipSOL       decimal.Decimal `json:"tipSol"`
	QuestionText string          `json:"questionText" binding:"required,min=2,max=280"`
	TipperWallet string          `json:"tipperWallet" binding:"required"`
}

// Create records a tip and returns the Solana Pay request the payer opens.
func (h *TipHandler) Create(c *gin.Context) {
	var req createTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in := service.CreateTipInput{
		CreatorHandle: req.Creator,
		TipperWallet:  req.TipperWallet,
		AmountSOL:     req.TipSOL,
		QuestionText:  req.QuestionText,
	}
	if uid := middleware.GetUserID(c); uid != 0 {
		in.AskerID = &uid
	}
	created, err := h.tips.Create(c.Request.Context(), in)
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusInternalServerError {
			h.log.WithError(err).Error("[Tips] Create failed")
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"tipId":        created.Tip.ID,
		"solanaPayUrl": created.SolanaPayURL,
		"reference":    created.Tip.ReferencePubkey,
		"feeBps":       created.Tip.FeeBps,
		"expiresAt":    created.Tip.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *TipHandler) Get(c *gin.Context) {
	view, err := h.tips.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": view})
}

type answerRequest struct {
	Content string `json:"content" binding:"required,min=2,max=1000"`
}

// Answer stores the creator's answer and releases the tip.
func (h *TipHandler) Answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	tipID := c.Param("id")
	res, err := h.settlement.Answer(c.Request.Context(), tipID, middleware.GetUserID(c), req.Content)
	if err != nil {
		h.settleError(c, tipID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "releaseSig": res.ReleaseSig, "feeSig": res.FeeSig})
}

// Decline refunds a funded tip in full.
func (h *TipHandler) Decline(c *gin.Context) {
	tipID := c.Param("id")
	res, err := h.settlement.Decline(c.Request.Context(), tipID, middleware.GetUserID(c))
	if err != nil {
		h.settleError(c, tipID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "refundSig": res.RefundSig})
}

// settleError renders a failed settlement call. Errors not produced by a
// precondition check come from moving funds: the tip stays claimed and the
// sweep finishes it.
func (h *TipHandler) settleError(c *gin.Context, tipID string, err error) {
	status, msg := statusFor(err)
	switch {
	case errors.Is(err, service.ErrSettlementPending):
		c.JSON(status, gin.H{"ok": true, "pending": true})
		return
	case status == http.StatusInternalServerError:
		h.log.WithError(err).WithField("tip_id", tipID).Error("[Settlement] Transfer failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Transfer failed, it will be retried", "detail": err.Error()})
		return
	}
	c.JSON(status, gin.H{"error": msg})
}
