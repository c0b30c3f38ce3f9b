package model

import (
	"encoding/json"
	"time"

	"pointshop-backend/internal/apperrors"
)

type ProductType string

const (
	ProductTypePoint ProductType = "POINT"
)

type GiveStatus string

const (
	GiveStatusReady   GiveStatus = "READY"
	GiveStatusSuccess GiveStatus = "SUCCESS"
	GiveStatusFail    GiveStatus = "FAIL"
	GiveStatusCancel  GiveStatus = "CANCEL"
)

// PointProduct 포인트 상품.
//
// TotalQuantity / LeftQuantity 가 nil 이면 무제한 판매 상품이다.
type PointProduct struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string `gorm:"type:varchar(120);index;not null" json:"title"`
	Description string `gorm:"type:text;default:''" json:"description"`
	Price       int64  `gorm:"not null" json:"price"`
	Point       int64  `gorm:"not null" json:"point"`

	// default:true 는 Create 시 false 가 생략되어 비활성 상품이 활성으로 저장된다.
	IsActive  bool       `gorm:"not null" json:"is_active"`
	StartTime *time.Time `gorm:"index" json:"start_time"`
	EndTime   *time.Time `gorm:"index" json:"end_time"`

	TotalQuantity *int64 `gorm:"index" json:"total_quantity"`
	LeftQuantity  *int64 `gorm:"index" json:"left_quantity"`
	IsSoldOut     bool   `gorm:"not null;default:false;index" json:"is_sold_out"`
	BoughtCount   int64  `gorm:"not null;default:0" json:"bought_count"`

	Ordering  int64     `gorm:"not null;default:0;index" json:"ordering"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PointProduct) TableName() string {
	return "point_products"
}

func (PointProduct) ProductType() ProductType {
	return ProductTypePoint
}

// OrderNumberPrefix 포인트 상품 주문 번호는 P1 로 시작한다.
func (PointProduct) OrderNumberPrefix() string {
	return "P1"
}

// AdjustStockAfterSale 판매 수량만큼 재고를 차감한다.
//
// 무제한 상품(수량 미설정)은 아무것도 하지 않는다. 재고가 모자라면 필드를 건드리지
// 않고 ErrStockNotEnough 를 반환한다. BoughtCount 는 구매 건수 기준이라 수량과
// 무관하게 1 증가한다. 변경분 저장은 호출자 트랜잭션 책임이다.
func (p *PointProduct) AdjustStockAfterSale(quantity int64) error {
	if p.TotalQuantity == nil || *p.TotalQuantity == 0 || p.LeftQuantity == nil || *p.LeftQuantity == 0 {
		return nil
	}
	left := *p.LeftQuantity - quantity
	if left < 0 {
		return apperrors.ErrStockNotEnough
	}
	p.LeftQuantity = &left
	p.BoughtCount++
	if left == 0 {
		p.IsSoldOut = true
	}
	return nil
}

// GiveProductMeta 는 주문 시점의 지급 계산 스냅샷이다. 상품이 나중에 삭제되어도
// 이 값으로 정산한다.
type GiveProductMeta struct {
	Point      int64 `json:"point"`
	TotalPoint int64 `json:"total_point"`
	Quantity   int64 `json:"quantity"`
}

// GiveProduct 상품 지급 원장. 주문 성공과 지급 성공을 분리해서 추적한다.
//
// ProductPK / ProductType 은 FK 없는 다형 참조이다.
type GiveProduct struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderItemID int64       `gorm:"index;not null" json:"order_item_id"`
	GuestID     int64       `gorm:"index;not null" json:"guest_id"`
	ProductPK   int64       `gorm:"index;not null" json:"product_pk"`
	ProductType ProductType `gorm:"type:varchar(20);not null" json:"product_type"`
	Quantity    int64       `gorm:"not null" json:"quantity"`
	MetaData    string      `gorm:"type:text" json:"meta_data"`
	Status      GiveStatus  `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GiveProduct) TableName() string {
	return "give_products"
}

// Meta 는 MetaData 스냅샷을 역직렬화한다.
func (g *GiveProduct) Meta() (GiveProductMeta, error) {
	var meta GiveProductMeta
	if err := json.Unmarshal([]byte(g.MetaData), &meta); err != nil {
		return GiveProductMeta{}, err
	}
	return meta, nil
}

type GiveProductLog struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	GiveProductID int64      `gorm:"index;not null" json:"give_product_id"`
	Status        GiveStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (GiveProductLog) TableName() string {
	return "give_product_logs"
}
