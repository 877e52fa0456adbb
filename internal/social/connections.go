package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/clickstudio/click/internal/apierr"
	"github.com/clickstudio/click/internal/models"
	"gorm.io/gorm"
)

// Connections lists the user's active platform connections.
func (o *OAuth) Connections(ctx context.Context, userID string) ([]models.SocialConnection, error) {
	var conns []models.SocialConnection
	err := o.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("platform").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("social: list connections: %w", err)
	}
	return conns, nil
}

// Connection returns the user's active connection for platform.
func (o *OAuth) Connection(ctx context.Context, userID, platform string) (*models.SocialConnection, error) {
	var conn models.SocialConnection
	err := o.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND active = ?", userID, platform, true).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apierr.NotFound(platform + " connection")
		}
		return nil, fmt.Errorf("social: get connection: %w", err)
	}
	return &conn, nil
}

// Disconnect deactivates the user's connection for platform. The row is
// kept so reconnecting updates it in place.
func (o *OAuth) Disconnect(ctx context.Context, userID, platform string) error {
	res := o.db.WithContext(ctx).Model(&models.SocialConnection{}).
		Where("user_id = ? AND platform = ? AND active = ?", userID, platform, true).
		Updates(map[string]interface{}{"active": false, "access_token": "", "refresh_token": ""})
	if res.Error != nil {
		return fmt.Errorf("social: disconnect %s: %w", platform, res.Error)
	}
	if res.RowsAffected == 0 {
		return apierr.NotFound(platform + " connection")
	}
	return nil
}
