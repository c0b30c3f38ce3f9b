package repository

import (
	"time"

	"pointshop-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindActivePointProduct 구매 가능한 포인트 상품을 찾는다.
// 비활성/삭제된 상품, 판매 기간 밖의 상품은 없는 것으로 본다.
func (r *ProductRepository) FindActivePointProduct(id int64, now time.Time) (*model.PointProduct, error) {
	var product model.PointProduct
	err := r.db.
		Where("id = ? AND is_active = ? AND is_deleted = ?", id, true, false).
		Where("start_time IS NULL OR start_time <= ?", now).
		Where("end_time IS NULL OR end_time >= ?", now).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindPointProductForUpdate 행 잠금을 걸고 상품을 읽는다. 재고 차감의
// 확인-후-기록 구간을 직렬화한다. SQLite(테스트)는 행 잠금이 없어 생략한다.
func (r *ProductRepository) FindPointProductForUpdate(tx *gorm.DB, id int64) (*model.PointProduct, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var product model.PointProduct
	if err := q.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindPointProduct 삭제 여부와 무관하게 상품을 찾는다 (지급 시점 가격 조회용).
func (r *ProductRepository) FindPointProduct(tx *gorm.DB, id int64) (*model.PointProduct, error) {
	var product model.PointProduct
	if err := tx.First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// SavePointProduct 재고 차감 결과를 저장한다. 호출자 트랜잭션 안에서 불린다.
func (r *ProductRepository) SavePointProduct(tx *gorm.DB, product *model.PointProduct) error {
	return tx.Save(product).Error
}

func (r *ProductRepository) CreateGiveProduct(tx *gorm.DB, give *model.GiveProduct) error {
	return tx.Create(give).Error
}

func (r *ProductRepository) SaveGiveProduct(tx *gorm.DB, give *model.GiveProduct) error {
	return tx.Save(give).Error
}

func (r *ProductRepository) CreateGiveLog(tx *gorm.DB, giveProductID int64, status model.GiveStatus) error {
	return tx.Create(&model.GiveProductLog{GiveProductID: giveProductID, Status: status}).Error
}

// FindGiveProductsByOrderItemIDs 주문 아이템들에 연결된 지급 레코드를 모두 가져온다.
func (r *ProductRepository) FindGiveProductsByOrderItemIDs(tx *gorm.DB, orderItemIDs []int64) ([]model.GiveProduct, error) {
	if len(orderItemIDs) == 0 {
		return nil, nil
	}
	var gives []model.GiveProduct
	err := tx.Where("order_item_id IN ?", orderItemIDs).Order("id").Find(&gives).Error
	return gives, err
}

func (r *ProductRepository) FindGiveLogs(giveProductID int64) ([]model.GiveProductLog, error) {
	var logs []model.GiveProductLog
	err := r.db.Where("give_product_id = ?", giveProductID).Order("id").Find(&logs).Error
	return logs, err
}
