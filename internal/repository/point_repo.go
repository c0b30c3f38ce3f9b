package repository

import (
	"time"

	"pointshop-backend/internal/model"

	"gorm.io/gorm"
)

type PointRepository struct {
	db *gorm.DB
}

func NewPointRepository(db *gorm.DB) *PointRepository {
	return &PointRepository{db: db}
}

func (r *PointRepository) DB() *gorm.DB {
	return r.db
}

// Create 원장 엔트리를 추가한다. 엔트리는 생성 후 수정되지 않는다.
func (r *PointRepository) Create(tx *gorm.DB, entry *model.GuestPoint) error {
	return tx.Create(entry).Error
}

// AvailableTotal 현재 사용 가능한 포인트 합계.
//
// 활성 엔트리 중 유효 기간 안에 있는 것만 합산하고, 음수면 0 으로 자른다.
func (r *PointRepository) AvailableTotal(tx *gorm.DB, guestID int64, now time.Time) (int64, error) {
	var total *int64
	err := tx.Model(&model.GuestPoint{}).
		Where("guest_id = ? AND is_active = ?", guestID, true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_until IS NULL OR valid_until >= ?", now).
		Select("SUM(point)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil || *total < 0 {
		return 0, nil
	}
	return *total, nil
}

func (r *PointRepository) FindByGuest(guestID int64) ([]model.GuestPoint, error) {
	var entries []model.GuestPoint
	err := r.db.Where("guest_id = ?", guestID).Order("id").Find(&entries).Error
	return entries, err
}
