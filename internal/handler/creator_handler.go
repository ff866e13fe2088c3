package handler

import (
	"net/http"
	"strconv"

	"tipwall/internal/fees"
	"tipwall/internal/middleware"
	"tipwall/internal/repository"
	"tipwall/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreatorHandler struct {
	creators *service.CreatorService
	users    *repository.UserRepository
	log      logrus.FieldLogger
}

func NewCreatorHandler(creators *service.CreatorService, users *repository.UserRepository, log logrus.FieldLogger) *CreatorHandler {
	registerValidators()
	return &CreatorHandler{creators: creators, users: users, log: log}
}

// Card is the public creator page a payer sees before tipping.
func (h *CreatorHandler) Card(c *gin.Context) {
	card, err := h.creators.Card(c.Request.Context(), c.Param("handle"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"creator": card})
}

func (h *CreatorHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := h.creators.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.log.WithError(err).Error("[Creators] Leaderboard failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"creators": rows})
}

func (h *CreatorHandler) Me(c *gin.Context) {
	u, err := h.users.GetByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// Inbox lists the caller's tips. ?status= is pending (default), answered,
// refunded or all.
func (h *CreatorHandler) Inbox(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	items, err := h.creators.Inbox(c.Request.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset)
	if err != nil {
		h.log.WithError(err).Error("[Creators] Inbox failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tips": items})
}

func (h *CreatorHandler) SetWallet(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := h.creators.SetWallet(c.Request.Context(), middleware.GetUserID(c), req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "wallet_address": u.WalletAddress})
}

type profileRequest struct {
	DisplayName    *string          `json:"display_name"`
	Bio            *string          `json:"bio"`
	TelegramHandle *string          `json:"telegram_handle" binding:"omitempty,telegram"`
	PriceSOL       *decimal.Decimal `json:"price_sol"`
}

// SaveProfile updates the fields present in the body. Text is clamped to
// the column sizes rather than rejected.
func (h *CreatorHandler) SaveProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	in := service.ProfileInput{
		DisplayName:    req.DisplayName,
		Bio:            req.Bio,
		TelegramHandle: req.TelegramHandle,
	}
	if req.PriceSOL != nil {
		var lamports uint64
		if !req.PriceSOL.IsZero() {
			l, err := fees.SOLToLamports(*req.PriceSOL)
			if err != nil {
				respondError(c, err)
				return
			}
			lamports = l
		}
		in.PriceLamports = &lamports
	}
	u, err := h.creators.SaveProfile(c.Request.Context(), middleware.GetUserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": u})
}

func (h *CreatorHandler) UploadAvatar(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	u, err := h.creators.SetAvatar(c.Request.Context(), middleware.GetUserID(c), f)
	if err != nil {
		if status, _ := statusFor(err); status == http.StatusInternalServerError {
			h.log.WithError(err).Error("[Upload] Avatar upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u.AvatarURL})
}

// RegisterFCMToken saves the FCM token for push notifications.
func (h *CreatorHandler) RegisterFCMToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}
	if err := h.creators.SetFCMToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
