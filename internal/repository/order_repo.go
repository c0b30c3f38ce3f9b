package repository

import (
	"time"

	"pointshop-backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetDB 트랜잭션 시작용 DB 핸들.
func (r *OrderRepository) GetDB() *gorm.DB {
	return r.db
}

// ExistsByOrderNumber 주문 번호 중복 확인 (주문 번호 생성 재시도 루프에서 사용).
func (r *OrderRepository) ExistsByOrderNumber(orderNumber string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Order{}).Where("order_number = ?", orderNumber).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *OrderRepository) Create(tx *gorm.DB, order *model.Order) error {
	return tx.Create(order).Error
}

func (r *OrderRepository) CreateItem(tx *gorm.DB, item *model.OrderItem) error {
	return tx.Create(item).Error
}

func (r *OrderRepository) FindByID(id int64) (*model.Order, error) {
	var order model.Order
	if err := r.db.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate 행 잠금을 걸고 주문을 읽는다. 중복 웹훅이 동시에 들어와도
// 같은 주문에 대한 정산은 직렬화된다. SQLite(테스트)는 행 잠금이 없어 생략한다.
func (r *OrderRepository) FindByIDForUpdate(tx *gorm.DB, id int64) (*model.Order, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var order model.Order
	if err := q.First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepository) FindItems(tx *gorm.DB, orderID int64) ([]model.OrderItem, error) {
	var items []model.OrderItem
	err := tx.Where("order_id = ?", orderID).Order("id").Find(&items).Error
	return items, err
}

// Save 주문 전체 필드를 저장한다 (상태 전이 후 호출).
func (r *OrderRepository) Save(tx *gorm.DB, order *model.Order) error {
	return tx.Save(order).Error
}

// UpdateTid 결제 준비 응답으로 받은 결제 고유 번호를 기록한다.
func (r *OrderRepository) UpdateTid(orderID int64, tid string) error {
	return r.db.Model(&model.Order{}).Where("id = ?", orderID).Update("tid", tid).Error
}

// UpdateItems 주문의 모든 아이템에 같은 변경을 일괄 적용한다.
func (r *OrderRepository) UpdateItems(tx *gorm.DB, orderID int64, values map[string]interface{}) error {
	return tx.Model(&model.OrderItem{}).Where("order_id = ?", orderID).Updates(values).Error
}

func (r *OrderRepository) CreateStatusLog(tx *gorm.DB, orderID int64, status model.OrderStatus) error {
	return tx.Create(&model.OrderStatusLog{OrderID: orderID, Status: status}).Error
}

// CreateItemStatusLogs 아이템 상태 로그를 일괄 생성한다.
func (r *OrderRepository) CreateItemStatusLogs(tx *gorm.DB, items []model.OrderItem, status model.OrderStatus, at time.Time) error {
	if len(items) == 0 {
		return nil
	}
	logs := make([]model.OrderItemStatusLog, 0, len(items))
	for _, item := range items {
		logs = append(logs, model.OrderItemStatusLog{
			OrderItemID: item.ID,
			Status:      status,
			RequestAt:   at,
		})
	}
	return tx.Create(&logs).Error
}

func (r *OrderRepository) CreateItemRefunds(tx *gorm.DB, refunds []model.OrderItemRefund) error {
	if len(refunds) == 0 {
		return nil
	}
	return tx.Create(&refunds).Error
}

func (r *OrderRepository) CountItemRefunds(orderItemID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.OrderItemRefund{}).
		Where("order_item_id = ? AND is_deleted = ?", orderItemID, false).
		Count(&count).Error
	return count, err
}

// OrderFilter 주문 목록 조회 조건.
type OrderFilter struct {
	OrderNumber string
	GuestID     int64
	Status      *model.OrderStatus
	Page        int
	PageSize    int
}

// Normalize 페이지 파라미터 기본값/상한 적용.
func (f *OrderFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

// List 페이지네이션 주문 목록. 주문 번호는 부분 일치, 나머지는 정확 일치.
func (r *OrderRepository) List(filter OrderFilter) ([]model.Order, int64, error) {
	query := r.db.Model(&model.Order{})

	if filter.OrderNumber != "" {
		query = query.Where("order_number LIKE ?", "%"+filter.OrderNumber+"%")
	}
	if filter.GuestID != 0 {
		query = query.Where("guest_id = ?", filter.GuestID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	filter.Normalize()
	offset := (filter.Page - 1) * filter.PageSize

	var orders []model.Order
	if err := query.Order("request_at DESC").Offset(offset).Limit(filter.PageSize).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
