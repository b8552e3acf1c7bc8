// Package mockbackend is an in-memory stand-in for the metered-access backend,
// used for local development and tests.
package mockbackend

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FreeTokens is the credit balance of a newly registered user.
const FreeTokens = 30

type user struct {
	ID        string    `json:"googleId"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	LastLogin time.Time `json:"lastLogin"`
}

type loginRequest struct {
	GoogleID string `json:"googleId" binding:"required"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Backend holds users and their remaining grant credits.
type Backend struct {
	mu     sync.Mutex
	users  map[string]*user
	tokens map[string]int
	logger *logrus.Logger
}

// New creates an empty backend.
func New(logger *logrus.Logger) *Backend {
	return &Backend{
		users:  make(map[string]*user),
		tokens: make(map[string]int),
		logger: logger,
	}
}

// Router returns the HTTP surface of the backend.
func (b *Backend) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/auth/login", b.login)
	router.GET("/user/profile", b.profile)
	router.POST("/generate", b.generate)

	return router
}

// Register creates or refreshes a user and returns their bearer token.
func (b *Backend) Register(userID, email, name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if u, ok := b.users[userID]; ok {
		u.LastLogin = now
	} else {
		b.users[userID] = &user{ID: userID, Email: email, Name: name, CreatedAt: now, LastLogin: now}
	}
	if _, ok := b.tokens[userID]; !ok {
		b.tokens[userID] = FreeTokens
	}
	return fmt.Sprintf("mock_jwt_%s_%d", userID, now.UnixMilli())
}

// SetTokens overrides a user's balance.
func (b *Backend) SetTokens(userID string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[userID] = n
}

// Tokens returns a user's balance.
func (b *Backend) Tokens(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens[userID]
}

func (b *Backend) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if strings.Contains(req.GoogleID, "_") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "googleId must not contain '_'"})
		return
	}

	token := b.Register(req.GoogleID, req.Email, req.Name)

	b.mu.Lock()
	u := *b.users[req.GoogleID]
	b.mu.Unlock()

	b.logger.WithField("user", req.GoogleID).Info("Mock login")
	c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
}

func (b *Backend) profile(c *gin.Context) {
	userID, ok := b.authenticate(c)
	if !ok {
		return
	}

	b.mu.Lock()
	u := *b.users[userID]
	count := b.tokens[userID]
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"profile":      u,
		"tokenCount":   count,
		"dailyCount":   0,
		"dailyLimit":   FreeTokens,
		"isSubscribed": false,
	})
}

func (b *Backend) generate(c *gin.Context) {
	userID, ok := b.authenticate(c)
	if !ok {
		return
	}

	b.mu.Lock()
	remaining := b.tokens[userID]
	if remaining <= 0 {
		b.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"error": "No tokens available"})
		return
	}
	b.tokens[userID] = remaining - 1
	b.mu.Unlock()

	b.logger.WithFields(logrus.Fields{"user": userID, "remaining": remaining - 1}).Info("Grant consumed")
	c.JSON(http.StatusOK, gin.H{"token": "whisper_" + userID + "_" + uuid.NewString()})
}

// authenticate resolves the bearer token to a known user, writing 401/404 otherwise.
func (b *Backend) authenticate(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}

	parts := strings.Split(strings.TrimPrefix(header, "Bearer "), "_")
	if len(parts) < 3 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return "", false
	}
	userID := parts[2]

	b.mu.Lock()
	_, known := b.users[userID]
	b.mu.Unlock()
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return "", false
	}
	return userID, true
}
