package handlers

import (
	"net/http"

	"challenge-market/internal/auth"
	"challenge-market/internal/models"
	"challenge-market/internal/repository"
	"challenge-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DisputeHandler struct {
	disputeService *services.DisputeService
	repo           *repository.Repository
}

func NewDisputeHandler(disputeService *services.DisputeService, repo *repository.Repository) *DisputeHandler {
	return &DisputeHandler{
		disputeService: disputeService,
		repo:           repo,
	}
}

// CreateDispute opens an appeal against a resolved challenge
// POST /api/challenges/:id/disputes
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	var req models.CreateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	dispute, err := h.disputeService.CreateDispute(c.Request.Context(), challengeID, userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// ListDisputes lists a challenge's disputes. Creator or moderator only.
// GET /api/challenges/:id/disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	challenge, err := h.repo.GetChallenge(c.Request.Context(), challengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	role, _ := auth.GetRole(c)
	if challenge.CreatorID != userID && role != models.RoleModerator {
		c.JSON(http.StatusForbidden, gin.H{"error": "creator or moderator only", "code": "unauthorized"})
		return
	}

	disputes, err := h.repo.ListChallengeDisputes(c.Request.Context(), challengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// StartReview marks a dispute as under review. Moderator only.
// POST /api/disputes/:id/review
func (h *DisputeHandler) StartReview(c *gin.Context) {
	disputeID, ok := disputeParam(c)
	if !ok {
		return
	}

	dispute, err := h.disputeService.StartReview(c.Request.Context(), disputeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute executes a moderator decision
// POST /api/disputes/:id/resolve
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	moderatorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	disputeID, ok := disputeParam(c)
	if !ok {
		return
	}

	var req models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	resolution, err := h.disputeService.ResolveDispute(c.Request.Context(), disputeID, moderatorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolution)
}

func disputeParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id", "code": "validation_error"})
		return uuid.Nil, false
	}
	return id, true
}
