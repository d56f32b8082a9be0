package handlers

import (
	"context"
	"net/http"

	"stocks-simulator/ledger"
	"stocks-simulator/middleware"

	"github.com/gin-gonic/gin"
)

type tradeInput struct {
	Symbol string `form:"symbol" json:"symbol"`
	Shares string `form:"shares" json:"shares"`
}

func userID(c *gin.Context) uint {
	return middleware.UserID(c)
}

// refresh updates prices before a page that displays them. Failures are
// logged and the previous prices are shown.
func (h *Handler) refresh(c *gin.Context) {
	if _, err := h.ledger.RefreshPrices(c.Request.Context(), userID(c)); err != nil {
		h.logger.Warn().Err(err).Uint("user_id", userID(c)).Msg("price refresh failed")
	}
}

// Index shows the portfolio with cash and grand total.
func (h *Handler) Index(c *gin.Context) {
	h.refresh(c)

	summary, err := h.ledger.Portfolio(c.Request.Context(), userID(c))
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) History(c *gin.Context) {
	h.refresh(c)

	history, err := h.ledger.History(c.Request.Context(), userID(c))
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, h.ledger.Buy)
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, h.ledger.Sell)
}

// SellForm lists the symbols that can be sold.
func (h *Handler) SellForm(c *gin.Context) {
	positions, err := h.ledger.Positions(c.Request.Context(), userID(c))
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": "sell", "fields": []string{"symbol", "shares"}, "stocks": positions})
}

type tradeFunc func(ctx context.Context, userID uint, symbol string, shares int) (ledger.Trade, error)

func (h *Handler) trade(c *gin.Context, execute tradeFunc) {
	var input tradeInput
	if err := c.ShouldBind(&input); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shares, err := ledger.ParseShares(input.Shares)
	if err != nil {
		h.apology(c, err)
		return
	}

	trade, err := execute(c.Request.Context(), userID(c), input.Symbol, shares)
	if err != nil {
		h.apology(c, err)
		return
	}
	c.JSON(http.StatusOK, trade)
}
