package handlers

import (
	"context"
	"net/http"
	"strconv"

	"challenge-market/internal/auth"
	"challenge-market/internal/models"
	"challenge-market/internal/repository"
	"challenge-market/internal/services"

	"github.com/gin-gonic/gin"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	repo             *repository.Repository
}

func NewChallengeHandler(challengeService *services.ChallengeService, repo *repository.Repository) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		repo:             repo,
	}
}

// CreateChallenge creates a new challenge
// POST /api/challenges
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	challenge, err := h.challengeService.CreateChallenge(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, challenge)
}

// ListChallenges lists challenges with aggregate bet figures
// GET /api/challenges?status=&search=&limit=&offset=
func (h *ChallengeHandler) ListChallenges(c *gin.Context) {
	limit, offset := pagination(c)

	var status *models.ChallengeStatus
	if raw := c.Query("status"); raw != "" {
		s := models.ChallengeStatus(raw)
		status = &s
	}

	challenges, err := h.repo.ListChallenges(c.Request.Context(), status, c.Query("search"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenges": challenges})
}

// GetChallenge retrieves a challenge with per-option aggregates
// GET /api/challenges/:id
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	detail, err := h.repo.GetChallengeDetail(c.Request.Context(), challengeID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// OpenChallenge opens a draft challenge for bets
// POST /api/challenges/:id/open
func (h *ChallengeHandler) OpenChallenge(c *gin.Context) {
	h.runTransition(c, h.challengeService.Open)
}

// CloseChallenge stops a challenge from accepting bets
// POST /api/challenges/:id/close
func (h *ChallengeHandler) CloseChallenge(c *gin.Context) {
	h.runTransition(c, h.challengeService.Close)
}

// ResolveChallenge names the winning option
// POST /api/challenges/:id/resolve
func (h *ChallengeHandler) ResolveChallenge(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	var req models.ResolveChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "validation_error"})
		return
	}

	challenge, err := h.challengeService.Resolve(c.Request.Context(), challengeID, userID, req.WinningOptionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// CancelChallenge voids a challenge and refunds active bets
// POST /api/challenges/:id/cancel
func (h *ChallengeHandler) CancelChallenge(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	role, _ := auth.GetRole(c)
	challenge, err := h.challengeService.Cancel(c.Request.Context(), challengeID, userID, role == models.RoleModerator)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

func (h *ChallengeHandler) runTransition(c *gin.Context, fn func(ctx context.Context, challengeID, actorID uint) (*models.Challenge, error)) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	challengeID, ok := challengeParam(c)
	if !ok {
		return
	}

	challenge, err := fn(c.Request.Context(), challengeID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// challengeParam parses the :id route parameter.
func challengeParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge id", "code": "validation_error"})
		return 0, false
	}
	return uint(id), true
}

// pagination parses limit/offset query parameters with sane bounds.
func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
