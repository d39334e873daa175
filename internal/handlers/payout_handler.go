package handlers

import (
	"net/http"

	"challenge-market/internal/repository"
	"challenge-market/internal/services"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	settlementService *services.SettlementService
	repo              *repository.Repository
}

func NewPayoutHandler(settlementService *services.SettlementService, repo *repository.Repository) *PayoutHandler {
	return &PayoutHandler{
		settlementService: settlementService,
		repo:              repo,
	}
}

// TriggerPayouts manually re-runs settlement for a resolved challenge
// POST /api/challenges/:id/payouts
func (h *PayoutHandler) TriggerPayouts(c *gin.Context) {
	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	if err := h.settlementService.TriggerSettlement(c.Request.Context(), challengeID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "settlement triggered"})
}

// GetPayouts returns the settlement view of a challenge
// GET /api/challenges/:id/payouts
func (h *PayoutHandler) GetPayouts(c *gin.Context) {
	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	report, err := h.repo.GetPayoutReport(c.Request.Context(), challengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
