package repository

import (
	"errors"
	"time"

	"outreach-backend/internal/device/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Metadata is the client-supplied device description stored next to a token.
type Metadata struct {
	Name       string
	Model      string
	OSVersion  string
	AppVersion string
}

// DeviceRepository defines the registry operations.
type DeviceRepository interface {
	Upsert(token string, meta Metadata) (*domain.Device, error)
	Remove(token string) (bool, error)
	Get(token string) (*domain.Device, error)
	List() ([]domain.Device, error)
	ListTokens() ([]string, error)
	Count() (int64, error)
}

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// Upsert creates or updates the row for a token in one statement. On
// conflict only metadata and last_seen_at are touched, so registered_at
// stays at first-seen and two concurrent upserts for the same token cannot
// interleave into a corrupt row.
func (r *deviceRepository) Upsert(token string, meta Metadata) (*domain.Device, error) {
	now := time.Now()
	device := &domain.Device{
		Token:        token,
		Name:         meta.Name,
		Model:        meta.Model,
		OSVersion:    meta.OSVersion,
		AppVersion:   meta.AppVersion,
		RegisteredAt: now,
		LastSeenAt:   now,
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "model", "os_version", "app_version", "last_seen_at",
		}),
	}).Create(device).Error
	if err != nil {
		return nil, err
	}

	return r.Get(token)
}

// Remove deletes the row for a token, reporting whether one existed.
func (r *deviceRepository) Remove(token string) (bool, error) {
	result := r.db.Where("token = ?", token).Delete(&domain.Device{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Get returns the device for a token, or nil when absent.
func (r *deviceRepository) Get(token string) (*domain.Device, error) {
	var device domain.Device
	err := r.db.Where("token = ?", token).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

func (r *deviceRepository) List() ([]domain.Device, error) {
	var devices []domain.Device
	err := r.db.Order("registered_at asc").Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// ListTokens returns all registered tokens in registration order.
func (r *deviceRepository) ListTokens() ([]string, error) {
	var tokens []string
	err := r.db.Model(&domain.Device{}).Order("registered_at asc").Pluck("token", &tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *deviceRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.Device{}).Count(&count).Error
	return count, err
}
