package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type quoteInput struct {
	Symbol string `form:"symbol" json:"symbol"`
}

func (h *Handler) Quote(c *gin.Context) {
	var input quoteInput
	if err := c.ShouldBind(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := h.ledger.Quote(c.Request.Context(), input.Symbol)
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// Refresh re-prices the user's holdings.
func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.ledger.RefreshPrices(c.Request.Context(), userID(c))
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": n})
}
