package model

import "time"

type OrderStatus string

const (
	OrderStatusReady         OrderStatus = "READY"
	OrderStatusFail          OrderStatus = "FAIL"
	OrderStatusCancel        OrderStatus = "CANCEL"
	OrderStatusSuccess       OrderStatus = "SUCCESS"
	OrderStatusRefund        OrderStatus = "REFUND"
	OrderStatusPartialRefund OrderStatus = "PARTIAL_REFUND"
)

type PaymentMethod string

const (
	PaymentMethodKakaoPay      PaymentMethod = "KAKAOPAY"
	PaymentMethodKakaoPayCard  PaymentMethod = "KAKAOPAY_CARD"
	PaymentMethodKakaoPayMoney PaymentMethod = "KAKAOPAY_MONEY"
)

// Order 주문 요약.
//
// TotalPaidPrice = TotalTaxPaidPrice + TotalProductPaidPrice + TotalDeliveryPaidPrice
// 가 항상 성립한다. Tid 는 결제 준비 전에는 비어 있다.
type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	GuestID     int64  `gorm:"index;not null" json:"guest_id"`
	MemberID    *int64 `gorm:"index" json:"member_id"`
	OrderNumber string `gorm:"type:varchar(50);uniqueIndex;not null" json:"order_number"`
	Tid         string `gorm:"type:varchar(50);index;default:''" json:"tid"`

	TotalPrice         int64 `gorm:"not null;default:0" json:"total_price"`
	TotalTaxPrice      int64 `gorm:"not null;default:0" json:"total_tax_price"`
	TotalProductPrice  int64 `gorm:"not null;default:0" json:"total_product_price"`
	TotalDeliveryPrice int64 `gorm:"not null;default:0" json:"total_delivery_price"`

	TotalPaidPrice         int64 `gorm:"not null;default:0" json:"total_paid_price"`
	TotalTaxPaidPrice      int64 `gorm:"not null;default:0" json:"total_tax_paid_price"`
	TotalProductPaidPrice  int64 `gorm:"not null;default:0" json:"total_product_paid_price"`
	TotalDeliveryPaidPrice int64 `gorm:"not null;default:0" json:"total_delivery_paid_price"`

	TotalDiscountedPrice         int64 `gorm:"not null;default:0" json:"total_discounted_price"`
	TotalDeliveryDiscountedPrice int64 `gorm:"not null;default:0" json:"total_delivery_discounted_price"`
	TotalProductDiscountedPrice  int64 `gorm:"not null;default:0" json:"total_product_discounted_price"`

	TotalRefundedPrice int64 `gorm:"not null;default:0" json:"total_refunded_price"`
	IsOnceRefunded     bool  `gorm:"not null;default:false" json:"is_once_refunded"`

	Status OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`

	OrderPhoneNumber string         `gorm:"type:varchar(50);default:''" json:"order_phone_number"`
	Address          string         `gorm:"type:varchar(200);default:''" json:"address"`
	AddressDetail    string         `gorm:"type:varchar(200);default:''" json:"address_detail"`
	AddressPostcode  string         `gorm:"type:varchar(50);default:''" json:"address_postcode"`
	DeliveryMemo     string         `gorm:"type:text;default:''" json:"delivery_memo"`
	PaymentMethod    *PaymentMethod `gorm:"type:varchar(20);index" json:"payment_method"`

	NeedNotificationSent bool `gorm:"not null;default:false" json:"need_notification_sent"`
	IsNotificationSent   bool `gorm:"not null;default:false" json:"is_notification_sent"`

	CanceledAt  *time.Time `gorm:"index" json:"canceled_at"`
	SucceededAt *time.Time `gorm:"index" json:"succeeded_at"`
	RefundedAt  *time.Time `gorm:"index" json:"refunded_at"`
	RequestAt   time.Time  `gorm:"autoCreateTime" json:"request_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether no further transition is allowed from the status.
// SUCCESS is not terminal: a paid order can still move to CANCEL or REFUND.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFail, OrderStatusCancel, OrderStatusRefund, OrderStatusPartialRefund:
		return true
	}
	return false
}

type OrderItem struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64       `gorm:"index;not null" json:"order_id"`
	ProductID   int64       `gorm:"index;not null" json:"product_id"`
	ProductType ProductType `gorm:"type:varchar(20);index;not null" json:"product_type"`

	ProductPrice    int64 `gorm:"not null;default:0" json:"product_price"`
	DiscountedPrice int64 `gorm:"not null;default:0" json:"discounted_price"`
	PaidPrice       int64 `gorm:"not null;default:0" json:"paid_price"`
	RefundedPrice   int64 `gorm:"not null;default:0" json:"refunded_price"`

	ItemQuantity          int64 `gorm:"not null;default:0" json:"item_quantity"`
	TotalRefundedQuantity int64 `gorm:"not null;default:0" json:"total_refunded_quantity"`

	Status OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`

	CanceledAt  *time.Time `gorm:"index" json:"canceled_at"`
	SucceededAt *time.Time `gorm:"index" json:"succeeded_at"`
	RefundedAt  *time.Time `gorm:"index" json:"refunded_at"`
	RequestAt   time.Time  `gorm:"autoCreateTime" json:"request_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderStatusLog 는 주문 상태가 바뀔 때마다 한 행씩 쌓이는 불변 로그다.
type OrderStatusLog struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64       `gorm:"index;not null" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	RequestAt time.Time   `gorm:"autoCreateTime;index" json:"request_at"`
}

func (OrderStatusLog) TableName() string {
	return "order_status_logs"
}

type OrderItemStatusLog struct {
	ID          int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderItemID int64       `gorm:"index;not null" json:"order_item_id"`
	Status      OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	RequestAt   time.Time   `gorm:"autoCreateTime;index" json:"request_at"`
}

func (OrderItemStatusLog) TableName() string {
	return "order_item_status_logs"
}

// OrderItemRefund 는 SUCCESS -> REFUND 전이 시점에만 생성되는 append-only 환불 기록이다.
type OrderItemRefund struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderItemID      int64     `gorm:"index;not null" json:"order_item_id"`
	RefundedPrice    int64     `gorm:"not null;default:0" json:"refunded_price"`
	RefundedQuantity int64     `gorm:"not null;default:0" json:"refunded_quantity"`
	IsDeleted        bool      `gorm:"not null;default:false" json:"is_deleted"`
	RequestAt        time.Time `gorm:"autoCreateTime;index" json:"request_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OrderItemRefund) TableName() string {
	return "order_item_refunds"
}
