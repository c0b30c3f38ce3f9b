package service

import (
	"fmt"
	"math/rand"
	"time"

	"pointshop-backend/internal/apperrors"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orderNumberLength = 17

// 주문 번호 문자 집합. 전화로 불러주거나 수기로 옮길 때 혼동되는 O 와 0 은 제외한다.
var orderNumberChars = []rune("ABCDEFGHIJKLMNPQRSTUVWXYZ123456789")

// OrderService 주문 집계(주문 + 아이템 + 상태 로그)의 생성과 상태 전이를 담당한다.
type OrderService struct {
	orderRepo   *repository.OrderRepository
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

func NewOrderService(
	orderRepo *repository.OrderRepository,
	productRepo *repository.ProductRepository,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		logger:      logger,
	}
}

// CreateOrderNumber prefix + 랜덤 문자로 17자 주문 번호를 만든다.
// 저장소에 이미 있으면 다시 뽑는다.
func (s *OrderService) CreateOrderNumber(prefix string) (string, error) {
	n := orderNumberLength - len(prefix)
	for {
		suffix := make([]rune, n)
		for i := range suffix {
			suffix[i] = orderNumberChars[rand.Intn(len(orderNumberChars))]
		}
		orderNumber := prefix + string(suffix)

		exists, err := s.orderRepo.ExistsByOrderNumber(orderNumber)
		if err != nil {
			return "", fmt.Errorf("check order number: %w", err)
		}
		if !exists {
			return orderNumber, nil
		}
	}
}

// InitializePointOrder 포인트 상품 구매 주문을 만든다.
//
// 재고 차감 -> 주문 -> 주문 아이템 -> 지급 레코드(READY) 가 한 트랜잭션이다.
// 재고 차감을 먼저 해서 재고 부족이면 주문 행이 아예 생기지 않는다.
func (s *OrderService) InitializePointOrder(
	product *model.PointProduct,
	guestID int64,
	memberID *int64,
	orderPhoneNumber string,
	paymentMethod model.PaymentMethod,
	quantity int64,
) (*model.Order, error) {
	orderNumber, err := s.CreateOrderNumber(product.OrderNumberPrefix())
	if err != nil {
		return nil, err
	}

	totalProductPrice := product.Price * quantity
	totalPrice := totalProductPrice
	totalDiscountedPrice := int64(0)
	totalPaidPrice := totalPrice - totalDiscountedPrice
	totalPoint := product.Point * quantity

	var order *model.Order
	err = s.orderRepo.GetDB().Transaction(func(tx *gorm.DB) error {
		fresh, err := s.productRepo.FindPointProductForUpdate(tx, product.ID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		if err := fresh.AdjustStockAfterSale(quantity); err != nil {
			return err
		}
		if err := s.productRepo.SavePointProduct(tx, fresh); err != nil {
			return fmt.Errorf("save product stock: %w", err)
		}

		order = &model.Order{
			GuestID:               guestID,
			MemberID:              memberID,
			OrderNumber:           orderNumber,
			TotalPrice:            totalPrice,
			TotalProductPrice:     totalProductPrice,
			TotalPaidPrice:        totalPaidPrice,
			TotalProductPaidPrice: totalProductPrice,
			TotalDiscountedPrice:  totalDiscountedPrice,
			Status:                model.OrderStatusReady,
			OrderPhoneNumber:      orderPhoneNumber,
			PaymentMethod:         &paymentMethod,
		}
		if err := s.orderRepo.Create(tx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.orderRepo.CreateStatusLog(tx, order.ID, model.OrderStatusReady); err != nil {
			return fmt.Errorf("create order status log: %w", err)
		}

		item := &model.OrderItem{
			OrderID:         order.ID,
			ProductID:       product.ID,
			ProductType:     product.ProductType(),
			ProductPrice:    totalPrice,
			DiscountedPrice: min(totalDiscountedPrice, totalProductPrice),
			PaidPrice:       totalPaidPrice,
			ItemQuantity:    quantity,
			Status:          model.OrderStatusReady,
		}
		if err := s.orderRepo.CreateItem(tx, item); err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
		if err := tx.Create(&model.OrderItemStatusLog{
			OrderItemID: item.ID,
			Status:      model.OrderStatusReady,
		}).Error; err != nil {
			return fmt.Errorf("create order item status log: %w", err)
		}

		meta := model.GiveProductMeta{
			Point:      product.Point,
			TotalPoint: totalPoint,
			Quantity:   quantity,
		}
		if err := readyGiveProduct(tx, s.productRepo, item.ID, guestID, product.ID, product.ProductType(), quantity, meta); err != nil {
			return err
		}

		order.Items = []model.OrderItem{*item}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order initialized",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("guest_id", guestID),
		zap.Int64("product_id", product.ID),
		zap.Int64("quantity", quantity),
	)
	return order, nil
}

// Approve READY -> SUCCESS 전이. 아이템까지 같은 시각으로 성공 처리하고
// 주문/아이템 상태 로그를 쌓는다. 호출자 트랜잭션 안에서 불린다.
func (s *OrderService) Approve(tx *gorm.DB, order *model.Order, paymentMethod model.PaymentMethod) error {
	if order.Status != model.OrderStatusReady {
		return apperrors.ErrOrderUnavailableStatus
	}

	now := time.Now()
	order.Status = model.OrderStatusSuccess
	order.PaymentMethod = &paymentMethod
	order.SucceededAt = &now
	if err := s.orderRepo.Save(tx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if err := s.orderRepo.CreateStatusLog(tx, order.ID, model.OrderStatusSuccess); err != nil {
		return fmt.Errorf("create order status log: %w", err)
	}

	items, err := s.orderRepo.FindItems(tx, order.ID)
	if err != nil {
		return fmt.Errorf("find order items: %w", err)
	}
	if err := s.orderRepo.UpdateItems(tx, order.ID, map[string]interface{}{
		"status":       model.OrderStatusSuccess,
		"succeeded_at": now,
	}); err != nil {
		return fmt.Errorf("update order items: %w", err)
	}
	return s.orderRepo.CreateItemStatusLogs(tx, items, model.OrderStatusSuccess, now)
}

// Cancel 취소 전이.
//
// SUCCESS 상태(결제 완료)면 REFUND 로 가며 결제 금액 전액을 환불 처리하고
// 아이템별 환불 기록을 남긴다. READY 상태면 결제된 금액이 없으므로 CANCEL 로만
// 바꾼다. 그 외 상태에서는 허용하지 않는다.
func (s *OrderService) Cancel(tx *gorm.DB, order *model.Order) error {
	switch order.Status {
	case model.OrderStatusSuccess:
		return s.refund(tx, order)
	case model.OrderStatusReady:
		return s.cancelUnpaid(tx, order)
	case model.OrderStatusCancel:
		return apperrors.ErrOrderAlreadyCanceled
	default:
		return apperrors.ErrOrderUnavailableStatus
	}
}

func (s *OrderService) refund(tx *gorm.DB, order *model.Order) error {
	now := time.Now()
	order.Status = model.OrderStatusRefund
	order.RefundedAt = &now
	order.TotalRefundedPrice = order.TotalPaidPrice
	order.IsOnceRefunded = true
	if err := s.orderRepo.Save(tx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if err := s.orderRepo.CreateStatusLog(tx, order.ID, model.OrderStatusRefund); err != nil {
		return fmt.Errorf("create order status log: %w", err)
	}

	// 환불 기록은 갱신 전 paid_price / item_quantity 값으로 만든다.
	items, err := s.orderRepo.FindItems(tx, order.ID)
	if err != nil {
		return fmt.Errorf("find order items: %w", err)
	}
	refunds := make([]model.OrderItemRefund, 0, len(items))
	for _, item := range items {
		refunds = append(refunds, model.OrderItemRefund{
			OrderItemID:      item.ID,
			RefundedPrice:    item.PaidPrice,
			RefundedQuantity: item.ItemQuantity,
		})
	}
	if err := s.orderRepo.CreateItemRefunds(tx, refunds); err != nil {
		return fmt.Errorf("create item refunds: %w", err)
	}

	if err := s.orderRepo.UpdateItems(tx, order.ID, map[string]interface{}{
		"status":                  model.OrderStatusRefund,
		"refunded_at":             now,
		"refunded_price":          gorm.Expr("paid_price"),
		"total_refunded_quantity": gorm.Expr("item_quantity"),
	}); err != nil {
		return fmt.Errorf("update order items: %w", err)
	}
	return s.orderRepo.CreateItemStatusLogs(tx, items, model.OrderStatusRefund, now)
}

func (s *OrderService) cancelUnpaid(tx *gorm.DB, order *model.Order) error {
	now := time.Now()
	order.Status = model.OrderStatusCancel
	order.CanceledAt = &now
	if err := s.orderRepo.Save(tx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if err := s.orderRepo.CreateStatusLog(tx, order.ID, model.OrderStatusCancel); err != nil {
		return fmt.Errorf("create order status log: %w", err)
	}

	items, err := s.orderRepo.FindItems(tx, order.ID)
	if err != nil {
		return fmt.Errorf("find order items: %w", err)
	}
	if err := s.orderRepo.UpdateItems(tx, order.ID, map[string]interface{}{
		"status":      model.OrderStatusCancel,
		"canceled_at": now,
	}); err != nil {
		return fmt.Errorf("update order items: %w", err)
	}
	return s.orderRepo.CreateItemStatusLogs(tx, items, model.OrderStatusCancel, now)
}

// Fail READY -> FAIL 전이. 결제/환불 금액 필드는 건드리지 않는다.
func (s *OrderService) Fail(tx *gorm.DB, order *model.Order) error {
	if order.Status != model.OrderStatusReady {
		return apperrors.ErrOrderUnavailableStatus
	}

	now := time.Now()
	order.Status = model.OrderStatusFail
	if err := s.orderRepo.Save(tx, order); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	if err := s.orderRepo.CreateStatusLog(tx, order.ID, model.OrderStatusFail); err != nil {
		return fmt.Errorf("create order status log: %w", err)
	}

	items, err := s.orderRepo.FindItems(tx, order.ID)
	if err != nil {
		return fmt.Errorf("find order items: %w", err)
	}
	if err := s.orderRepo.UpdateItems(tx, order.ID, map[string]interface{}{
		"status": model.OrderStatusFail,
	}); err != nil {
		return fmt.Errorf("update order items: %w", err)
	}
	return s.orderRepo.CreateItemStatusLogs(tx, items, model.OrderStatusFail, now)
}
