package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crowdqueue/crowdqueue/pkg/jwt"
	"github.com/crowdqueue/crowdqueue/pkg/redis"
)

const tokenTTL = 30 * 24 * time.Hour

// Handler mints anonymous guest identities. There is no third-party login;
// a guest is a uuid plus an optional display name kept in the session store.
type Handler struct {
	secret   string
	sessions *redis.SessionStore
}

func NewHandler(secret string, sessions *redis.SessionStore) *Handler {
	return &Handler{secret: secret, sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	a := r.Group("/auth")
	{
		a.POST("/guest", h.guest)

		protected := a.Group("", Middleware(h.secret))
		protected.GET("/me", h.me)
	}
}

type guestRequest struct {
	Name string `json:"name"`
}

func (h *Handler) guest(c *gin.Context) {
	var req guestRequest
	// Body is optional; a nameless guest is fine.
	_ = c.ShouldBindJSON(&req)

	userID := uuid.New().String()

	token, err := jwt.GenerateToken(h.secret, userID, tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	sess := &redis.Session{UserID: userID, Name: req.Name, CreatedAt: time.Now().UTC()}
	if err := h.sessions.Put(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store session"})
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenTTL.Seconds()),
	})

	c.JSON(http.StatusCreated, gin.H{"token": token, "user_id": userID, "name": req.Name})
}

func (h *Handler) me(c *gin.Context) {
	userID := CallerID(c)

	sess, err := h.sessions.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "name": sess.Name})
}
