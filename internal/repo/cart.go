package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/spice_shop/internal/models"
)

// Load returns the live value stored under key. Expired rows read as absent.
func (r *GormRepo) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.CartEntry
	err := r.DB.WithContext(ctx).
		Where("cart_key = ? AND expires_at > ?", key, r.now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return entry.Value, true, nil
}

func (r *GormRepo) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := r.now()
	entry := models.CartEntry{
		Key:       key,
		Value:     data,
		ExpiresAt: now.Add(ttl),
		UpdatedAt: now,
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (r *GormRepo) Delete(ctx context.Context, key string) error {
	return r.DB.WithContext(ctx).Where("cart_key = ?", key).Delete(&models.CartEntry{}).Error
}

// PurgeExpired removes abandoned carts whose expiry passed.
func (r *GormRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Where("expires_at <= ?", r.now()).Delete(&models.CartEntry{})
	return res.RowsAffected, res.Error
}
