package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stocks-simulator/auth"
	"stocks-simulator/models"

	"gorm.io/gorm"
)

// Register creates a user holding the starting cash. Only the password hash
// is stored.
func (l *Ledger) Register(ctx context.Context, username, password, confirmation string) (*models.User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return nil, fmt.Errorf("%w: must provide username", ErrInvalidInput)
	case password == "":
		return nil, fmt.Errorf("%w: must provide password", ErrInvalidInput)
	case confirmation == "":
		return nil, fmt.Errorf("%w: must provide password confirmation", ErrInvalidInput)
	case password != confirmation:
		return nil, fmt.Errorf("%w: passwords must match", ErrInvalidInput)
	}

	db := l.db.WithContext(ctx)
	var existing models.User
	err := db.Where("username = ?", username).Take(&existing).Error
	if err == nil {
		return nil, ErrDuplicateUsername
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{Username: username, Hash: hash, Cash: l.startingCash}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	l.logger.Info().Uint("user_id", user.ID).Str("username", username).Msg("user registered")
	return &user, nil
}

// Authenticate returns the id of the user whose credentials match.
func (l *Ledger) Authenticate(ctx context.Context, username, password string) (uint, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, fmt.Errorf("%w: must provide username", ErrAuthentication)
	}
	if password == "" {
		return 0, fmt.Errorf("%w: must provide password", ErrAuthentication)
	}

	var user models.User
	if err := l.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAuthentication
		}
		return 0, fmt.Errorf("lookup username: %w", err)
	}
	if err := auth.CheckPassword(user.Hash, password); err != nil {
		return 0, ErrAuthentication
	}
	return user.ID, nil
}

func (l *Ledger) User(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := l.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}
