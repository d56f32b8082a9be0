package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stocks-simulator/ledger"
	"stocks-simulator/middleware"
	"stocks-simulator/models"
	"stocks-simulator/quote"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Ledger is the portfolio state the handlers operate on.
type Ledger interface {
	Quote(ctx context.Context, symbol string) (quote.Quote, error)
	Buy(ctx context.Context, userID uint, symbol string, shares int) (ledger.Trade, error)
	Sell(ctx context.Context, userID uint, symbol string, shares int) (ledger.Trade, error)
	Portfolio(ctx context.Context, userID uint) (ledger.Summary, error)
	Positions(ctx context.Context, userID uint) ([]models.Position, error)
	History(ctx context.Context, userID uint) ([]models.Transaction, error)
	RefreshPrices(ctx context.Context, userID uint) (int, error)
	Register(ctx context.Context, username, password, confirmation string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (uint, error)
}

// Sessions issues and revokes session tokens.
type Sessions interface {
	middleware.SessionParser
	Issue(userID uint) (string, error)
	Revoke(ctx context.Context, token string) error
	TTL() time.Duration
}

type Handler struct {
	ledger       Ledger
	sessions     Sessions
	logger       zerolog.Logger
	secureCookie bool
}

func New(l Ledger, sessions Sessions, logger zerolog.Logger) *Handler {
	return &Handler{ledger: l, sessions: sessions, logger: logger}
}

// SecureCookies marks the session cookie Secure (HTTPS deployments).
func (h *Handler) SecureCookies(secure bool) *Handler {
	h.secureCookie = secure
	return h
}

// Routes mounts every endpoint on router. limiter guards the credential forms.
func (h *Handler) Routes(router *gin.Engine, limiter gin.HandlerFunc) {
	router.Use(middleware.NoCache())

	// Public routes
	router.GET("/login", form("login", "username", "password"))
	router.POST("/login", limiter, h.Login)
	router.GET("/logout", h.Logout)
	router.GET("/register", form("register", "username", "password", "confirmation"))
	router.POST("/register", limiter, h.Register)

	// Protected routes
	auth := router.Group("/")
	auth.Use(middleware.RequireSession(h.sessions))
	{
		auth.GET("/", h.Index)
		auth.GET("/quote", form("quote", "symbol"))
		auth.POST("/quote", h.Quote)
		auth.GET("/buy", form("buy", "symbol", "shares"))
		auth.POST("/buy", h.Buy)
		auth.GET("/sell", h.SellForm)
		auth.POST("/sell", h.Sell)
		auth.GET("/history", h.History)
		auth.POST("/refresh", h.Refresh)
	}
}

// form describes the fields a POST to the same path expects.
func form(name string, fields ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"form": name, "fields": fields})
	}
}

// apology reports a failed request as {"error": message}.
func (h *Handler) apology(c *gin.Context, err error) {
	status := http.StatusBadRequest
	message := err.Error()

	switch {
	case errors.Is(err, ledger.ErrAuthentication), errors.Is(err, ledger.ErrUserNotFound):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidInput),
		errors.Is(err, ledger.ErrSymbolNotFound),
		errors.Is(err, ledger.ErrPositionNotOwned),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInsufficientShares),
		errors.Is(err, ledger.ErrDuplicateUsername):
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		status = http.StatusInternalServerError
		message = "something went wrong"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
