package ledger

import "errors"

// User-facing failures. Callers match them with errors.Is; the wrapped
// message is suitable for display.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrSymbolNotFound     = errors.New("stock symbol not found")
	ErrPositionNotOwned   = errors.New("stock not owned")
	ErrInsufficientFunds  = errors.New("not enough cash")
	ErrInsufficientShares = errors.New("share amount cannot be greater than the amount owned")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrAuthentication     = errors.New("invalid username and/or password")
	ErrUserNotFound       = errors.New("user not found")
)
