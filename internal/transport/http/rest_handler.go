package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/auth"
	"quizbowl-practice/internal/domain"
)

type AuthHandler struct {
	gate  *auth.Gate
	appID string
}

func NewAuthHandler(gate *auth.Gate, appID string) *AuthHandler {
	return &AuthHandler{gate: gate, appID: appID}
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type sessionResponse struct {
	UserID    string `json:"userId"`
	Anonymous bool   `json:"anonymous"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	AppID     string `json:"appId"`
}

func (h *AuthHandler) toSessionResponse(s auth.Session) sessionResponse {
	return sessionResponse{UserID: s.UserID, Anonymous: s.Anonymous, Token: s.Token, ExpiresAt: s.ExpiresAt.Unix(), AppID: h.appID}
}

func (h *AuthHandler) Anonymous(c *gin.Context) {
	session, err := h.gate.SignInAnonymously(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "retry": true})
		return
	}
	c.JSON(http.StatusOK, h.toSessionResponse(session))
}

func (h *AuthHandler) CustomToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	session, err := h.gate.SignInWithCustomToken(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "retry": true})
		return
	}
	c.JSON(http.StatusOK, h.toSessionResponse(session))
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if err := h.gate.SignOut(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "retry": true})
		return
	}
	c.Status(http.StatusNoContent)
}

type PracticeHandler struct {
	service *app.PracticeService
}

func NewPracticeHandler(service *app.PracticeService) *PracticeHandler {
	return &PracticeHandler{service: service}
}

func (h *PracticeHandler) Voices(c *gin.Context) {
	voices, def, err := h.service.Voices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to load voices: " + err.Error()})
		return
	}
	if voices == nil {
		voices = []domain.Voice{}
	}
	c.JSON(http.StatusOK, gin.H{"voices": voices, "default": def})
}

func (h *PracticeHandler) Set(c *gin.Context) {
	set, err := h.service.Set(c.Request.Context(), c.Param("id"))
	if errors.Is(err, domain.ErrSetNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": set.ID, "title": set.Title, "count": len(set.Questions)})
}
