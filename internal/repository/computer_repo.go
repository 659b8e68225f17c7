package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"backuphub/internal/models"
)

// ComputerRepository handles agent machine rows.
type ComputerRepository struct {
	db *gorm.DB
}

func NewComputerRepository(db *gorm.DB) *ComputerRepository {
	return &ComputerRepository{db: db}
}

// FindByAuthToken resolves an agent credential. Returns nil when no computer holds the token.
func (r *ComputerRepository) FindByAuthToken(ctx context.Context, token string) (*models.Computer, error) {
	if token == "" {
		return nil, nil
	}
	var c models.Computer
	err := r.db.WithContext(ctx).Where("auth_token = ?", token).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByID finds a computer by primary key.
func (r *ComputerRepository) FindByID(ctx context.Context, id uint64) (*models.Computer, error) {
	var c models.Computer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateStatus sets online/offline together with last_seen_at.
func (r *ComputerRepository) UpdateStatus(ctx context.Context, id uint64, status string, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Computer{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"last_seen_at": lastSeen,
		}).Error
}

// Touch refreshes last_seen_at only.
func (r *ComputerRepository) Touch(ctx context.Context, id uint64, lastSeen time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Computer{}).Where("id = ?", id).
		Update("last_seen_at", lastSeen).Error
}
