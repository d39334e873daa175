package handlers

import (
	"net/http"

	"challenge-market/internal/auth"
	"challenge-market/internal/models"
	"challenge-market/internal/repository"
	"challenge-market/internal/services"

	"github.com/gin-gonic/gin"
)

type BetHandler struct {
	stakeService *services.StakeService
	repo         *repository.Repository
}

func NewBetHandler(stakeService *services.StakeService, repo *repository.Repository) *BetHandler {
	return &BetHandler{
		stakeService: stakeService,
		repo:         repo,
	}
}

// PlaceBet places a stake against a challenge option
// POST /api/challenges/:id/bets
func (h *BetHandler) PlaceBet(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	bet, err := h.stakeService.PlaceBet(c.Request.Context(), challengeID, userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, bet)
}

// MyBets lists the caller's bets
// GET /api/bets?status=&limit=&offset=
func (h *BetHandler) MyBets(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)

	var status *models.BetStatus
	if raw := c.Query("status"); raw != "" {
		s := models.BetStatus(raw)
		status = &s
	}

	bets, err := h.repo.ListUserBets(c.Request.Context(), userID, status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

// MyBalance returns the caller's current balance per asset
// GET /api/users/me/balance
func (h *BetHandler) MyBalance(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balances, err := h.repo.ListUserBalances(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

// MyLedger lists the caller's ledger journal in creation order
// GET /api/ledger?limit=&offset=
func (h *BetHandler) MyLedger(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := pagination(c)

	entries, err := h.repo.ListLedgerEntries(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
