package http

import (
	"errors"
	"net/http"

	"github.com/BillyP-Bot/billybot-backend/internal/domain"
	"github.com/BillyP-Bot/billybot-backend/internal/service/game"
	"github.com/disgoorg/snowflake/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ConnectFourHandler struct {
	Games *game.Service
	log   zerolog.Logger
}

func NewConnectFourHandler(games *game.Service) *ConnectFourHandler {
	return &ConnectFourHandler{
		Games: games,
		log:   log.With().Str("component", "connect-four-api").Logger(),
	}
}

// Register mounts the routes under /api/servers/:server_id/connect-four.
func (h *ConnectFourHandler) Register(r gin.IRouter) {
	g := r.Group("/api/servers/:server_id/connect-four")
	g.POST("/challenges", h.Challenge)
	g.POST("/accept", h.Accept)
	g.POST("/moves", h.Move)
	g.GET("/players/:user_id", h.GetMatch)
}

type challengeRequest struct {
	ChallengerID string `json:"challenger_id" binding:"required"`
	ChallengedID string `json:"challenged_id" binding:"required"`
	Wager        int64  `json:"wager"`
}

type acceptRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type moveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Column *int   `json:"column" binding:"required"`
}

func (h *ConnectFourHandler) Challenge(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	challenger, ok := playerID(c, "challenger_id", req.ChallengerID)
	if !ok {
		return
	}
	challenged, ok := playerID(c, "challenged_id", req.ChallengedID)
	if !ok {
		return
	}

	m, err := h.Games.Challenge(c.Request.Context(), scope, challenger, challenged, req.Wager)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ConnectFourHandler) Accept(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var req acceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	player, ok := playerID(c, "user_id", req.UserID)
	if !ok {
		return
	}

	m, err := h.Games.Accept(c.Request.Context(), scope, player)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *ConnectFourHandler) Move(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	player, ok := playerID(c, "user_id", req.UserID)
	if !ok {
		return
	}

	result, err := h.Games.Move(c.Request.Context(), scope, player, *req.Column)
	if err != nil && result == nil {
		h.fail(c, err)
		return
	}
	if err != nil {
		// the move completed the match; settlement is retried in the background
		h.log.Error().Err(err).Str("match_id", result.Match.ID).Msg("settlement deferred")
	}
	c.JSON(http.StatusOK, result)
}

func (h *ConnectFourHandler) GetMatch(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	player, ok := playerID(c, "user_id", c.Param("user_id"))
	if !ok {
		return
	}

	m, err := h.Games.CurrentMatch(c.Request.Context(), scope, player)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Discord ids are snowflakes; anything else is rejected before reaching the service.
func scopeParam(c *gin.Context) (domain.ScopeID, bool) {
	id, err := snowflake.Parse(c.Param("server_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "server_id must be a snowflake"})
		return "", false
	}
	return domain.ScopeID(id.String()), true
}

func playerID(c *gin.Context, field, raw string) (domain.PlayerID, bool) {
	id, err := snowflake.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be a snowflake"})
		return "", false
	}
	return domain.PlayerID(id.String()), true
}

func (h *ConnectFourHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	var rejection domain.Error
	if !errors.As(err, &rejection) {
		return http.StatusInternalServerError
	}
	switch rejection {
	case domain.ErrNoActiveMatch, domain.ErrNoPendingChallenge, domain.ErrPlayerNotFound:
		return http.StatusNotFound
	case domain.ErrAlreadyInMatch, domain.ErrOpponentBusy, domain.ErrStaleMatch,
		domain.ErrChallengeAccepted, domain.ErrMatchNotInProgress:
		return http.StatusConflict
	case domain.ErrInvalidBoard:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
