package handlers

import (
	"net/http"

	"stocks-simulator/middleware"

	"github.com/gin-gonic/gin"
)

type loginInput struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type registerInput struct {
	Username     string `form:"username" json:"username"`
	Password     string `form:"password" json:"password"`
	Confirmation string `form:"confirmation" json:"confirmation"`
}

func (h *Handler) startSession(c *gin.Context, userID uint) (string, bool) {
	token, err := h.sessions.Issue(userID)
	if err != nil {
		h.apology(c, err)
		return "", false
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(h.sessions.TTL().Seconds()), "/", "", h.secureCookie, true)
	return token, true
}

// endSession forgets any session the client presents.
func (h *Handler) endSession(c *gin.Context) {
	if token := middleware.Token(c); token != "" {
		if err := h.sessions.Revoke(c.Request.Context(), token); err != nil {
			h.logger.Warn().Err(err).Msg("failed to revoke session")
		}
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.secureCookie, true)
}

func (h *Handler) Login(c *gin.Context) {
	h.endSession(c)

	var input loginInput
	if err := c.ShouldBind(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.ledger.Authenticate(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.apology(c, err)
		return
	}

	token, ok := h.startSession(c, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "token": token})
}

func (h *Handler) Logout(c *gin.Context) {
	h.endSession(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) Register(c *gin.Context) {
	var input registerInput
	if err := c.ShouldBind(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.ledger.Register(c.Request.Context(), input.Username, input.Password, input.Confirmation)
	if err != nil {
		h.apology(c, err)
		return
	}

	token, ok := h.startSession(c, user.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}
