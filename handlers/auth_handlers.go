package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"heatpulse/api/middleware"
	"heatpulse/api/models"
	"heatpulse/api/store"
	"heatpulse/api/utils"
)

type AuthHandlers struct {
	UserStore  store.UserStore
	JWTManager *utils.JWTManager
}

func NewAuthHandlers(userStore store.UserStore, jwtManager *utils.JWTManager) *AuthHandlers {
	return &AuthHandlers{UserStore: userStore, JWTManager: jwtManager}
}

// Signup registers a dashboard user and returns an access token.
func (h *AuthHandlers) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}

	user, err := h.UserStore.CreateUser(c.Request.Context(), req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists"})
			return
		}
		log.Error().Err(err).Msg("failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}

	token, err := h.JWTManager.Generate(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Signup failed"})
		return
	}

	profile := user.Profile()
	c.JSON(http.StatusCreated, models.AuthResponse{AccessToken: token, UserProfile: &profile})
}

// Login exchanges credentials for an access token.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	user, err := h.UserStore.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Msg("failed to look up user")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !utils.CheckPassword(user.HashedPassword, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.JWTManager.Generate(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	log.Info().Int64("user_id", user.ID).Msg("user logged in")
	c.JSON(http.StatusOK, models.AuthResponse{AccessToken: token})
}

func (h *AuthHandlers) Me(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	user, err := h.UserStore.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		log.Error().Err(err).Int64("user_id", userID).Msg("failed to fetch user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}

	c.JSON(http.StatusOK, user.Profile())
}
