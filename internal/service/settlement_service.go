package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pointshop-backend/internal/apperrors"
	"pointshop-backend/internal/crypt"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/mq"
	"pointshop-backend/internal/repository"
	"pointshop-backend/pkg/kakaopay"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier 정산 이벤트 전송. 발행 실패는 정산을 되돌리지 않고 로그로만 남긴다.
type Notifier interface {
	PublishOrderEvent(msg *mq.OrderEventMessage) error
}

// SettlementService 결제 준비/승인/취소/실패 흐름을 묶는 오케스트레이터.
//
// 승인/취소/실패 각각 부수 효과 묶음당 트랜잭션 하나를 쓰고, 트랜잭션 안에서는
// 주문 행을 잠가 중복 웹훅 전달을 직렬화한다.
type SettlementService struct {
	orderRepo    *repository.OrderRepository
	productRepo  *repository.ProductRepository
	pointRepo    *repository.PointRepository
	orders       *OrderService
	fulfillments *FulfillmentService
	gateway      *kakaopay.Client
	cipher       crypt.TokenCipher
	notifier     Notifier
	baseDomain   string
	logger       *zap.Logger
}

func NewSettlementService(
	orderRepo *repository.OrderRepository,
	productRepo *repository.ProductRepository,
	pointRepo *repository.PointRepository,
	orders *OrderService,
	fulfillments *FulfillmentService,
	gateway *kakaopay.Client,
	cipher crypt.TokenCipher,
	notifier Notifier,
	baseDomain string,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		pointRepo:    pointRepo,
		orders:       orders,
		fulfillments: fulfillments,
		gateway:      gateway,
		cipher:       cipher,
		notifier:     notifier,
		baseDomain:   baseDomain,
		logger:       logger,
	}
}

// ReadyToPayInput 구매 요청.
type ReadyToPayInput struct {
	ProductID        int64
	ProductType      model.ProductType
	Quantity         int64
	PaymentMethod    model.PaymentMethod
	OrderPhoneNumber string
	GuestID          int64
	MemberID         *int64
}

type ReadyToPayResult struct {
	OrderID               int64  `json:"order_id"`
	OrderNumber           string `json:"order_number"`
	Tid                   string `json:"tid"`
	NextRedirectAppURL    string `json:"next_redirect_app_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
}

// ReadyToPay 주문을 만들고 결제사 결제 준비를 호출한다.
//
// 주문 생성(재고 차감 포함)은 자체 트랜잭션으로 먼저 커밋되고, 결제 준비가
// 실패하면 주문은 READY 로 남는다 (이후 fail 콜백으로 정리된다).
func (s *SettlementService) ReadyToPay(ctx context.Context, input ReadyToPayInput) (*ReadyToPayResult, error) {
	if input.ProductType != model.ProductTypePoint {
		return nil, apperrors.ErrUnavailablePayHandler
	}

	product, err := s.productRepo.FindActivePointProduct(input.ProductID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotExists
		}
		return nil, fmt.Errorf("find point product: %w", err)
	}

	order, err := s.orders.InitializePointOrder(
		product,
		input.GuestID,
		input.MemberID,
		input.OrderPhoneNumber,
		input.PaymentMethod,
		input.Quantity,
	)
	if err != nil {
		return nil, err
	}

	handler, err := kakaopay.NewProductHandler(s.baseDomain, order.ID, s.cipher)
	if err != nil {
		return nil, err
	}

	productName := product.Title
	if input.Quantity > 1 {
		productName = fmt.Sprintf("%s (%d개)", productName, input.Quantity)
	}

	ready, err := s.gateway.Ready(ctx, kakaopay.ReadyRequest{
		OrderID:       strconv.FormatInt(order.ID, 10),
		GuestID:       strconv.FormatInt(input.GuestID, 10),
		ProductName:   productName,
		TotalAmount:   order.TotalPaidPrice,
		TaxFreeAmount: 0,
		ApprovalURL:   handler.ApprovalURL,
		CancelURL:     handler.CancelURL,
		FailURL:       handler.FailURL,
	})
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateTid(order.ID, ready.Tid); err != nil {
		return nil, fmt.Errorf("save tid: %w", err)
	}

	return &ReadyToPayResult{
		OrderID:               order.ID,
		OrderNumber:           order.OrderNumber,
		Tid:                   ready.Tid,
		NextRedirectAppURL:    ready.NextRedirectAppURL,
		NextRedirectMobileURL: ready.NextRedirectMobileURL,
		NextRedirectPCURL:     ready.NextRedirectPCURL,
	}, nil
}

// ApprovePayment 결제 승인 콜백 정산.
//
// 결제사 승인이 성공한 뒤 트랜잭션 하나로 주문 승인과 지급을 전부 처리한다.
func (s *SettlementService) ApprovePayment(ctx context.Context, orderID int64, pgToken string) error {
	order, err := s.loadOrder(orderID)
	if err != nil {
		return err
	}

	response, err := s.gateway.Approve(
		ctx,
		order.Tid,
		pgToken,
		strconv.FormatInt(order.ID, 10),
		strconv.FormatInt(order.GuestID, 10),
	)
	if err != nil {
		return err
	}

	paymentMethod := model.PaymentMethodKakaoPayCard
	if response.PaymentMethodType == "MONEY" {
		paymentMethod = model.PaymentMethodKakaoPayMoney
	}

	err = s.orderRepo.GetDB().Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if err := s.orders.Approve(tx, locked, paymentMethod); err != nil {
			return err
		}
		return s.forEachGiveProduct(tx, locked.ID, s.fulfillments.Give)
	})
	if err != nil {
		return err
	}

	s.publishEvent(order, "order_approved", model.OrderStatusSuccess)
	s.logger.Info("payment approved",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("payment_method", string(paymentMethod)),
	)
	return nil
}

// CancelPayment 결제 취소 콜백 정산.
//
// 로컬 취소(주문 + 지급 회수)를 한 트랜잭션으로 커밋한 뒤에야 결제사 취소를
// 호출한다. 결제사 호출 실패는 커밋된 취소를 되돌리지 않는다 — at-least-once
// 전제로 운영에서 재처리한다.
func (s *SettlementService) CancelPayment(ctx context.Context, orderToken, reason string) error {
	orderID, err := s.cipher.DecryptID(orderToken)
	if err != nil {
		return apperrors.ErrOrderNotExists
	}

	order, err := s.loadOrder(orderID)
	if err != nil {
		return err
	}

	if order.Status == model.OrderStatusCancel {
		return apperrors.ErrOrderAlreadyCanceled
	}
	if order.Status.IsTerminal() {
		return apperrors.ErrOrderUnavailableStatus
	}

	var canceled *model.Order
	err = s.orderRepo.GetDB().Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if err := s.orders.Cancel(tx, locked); err != nil {
			return err
		}
		canceled = locked
		return s.forEachGiveProduct(tx, locked.ID, s.fulfillments.Cancel)
	})
	if err != nil {
		return err
	}

	s.publishEvent(order, "order_canceled", canceled.Status)

	payload, _ := json.Marshal(map[string]string{"cancel_reason": reason})
	if _, err := s.gateway.Cancel(ctx, order.Tid, order.TotalPaidPrice, order.TotalTaxPaidPrice, string(payload)); err != nil {
		s.logger.Error("gateway cancel failed after local cancel committed",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("payment canceled",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
	)
	return nil
}

// FailPayment 결제 실패 콜백 정산. 외부 호출 없이 로컬 상태만 닫는다.
func (s *SettlementService) FailPayment(ctx context.Context, orderToken string) error {
	orderID, err := s.cipher.DecryptID(orderToken)
	if err != nil {
		return apperrors.ErrOrderNotExists
	}

	order, err := s.loadOrder(orderID)
	if err != nil {
		return err
	}

	err = s.orderRepo.GetDB().Transaction(func(tx *gorm.DB) error {
		locked, err := s.orderRepo.FindByIDForUpdate(tx, order.ID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if err := s.orders.Fail(tx, locked); err != nil {
			return err
		}
		return s.forEachGiveProduct(tx, locked.ID, s.fulfillments.Fail)
	})
	if err != nil {
		return err
	}

	s.publishEvent(order, "order_failed", model.OrderStatusFail)
	s.logger.Info("payment failed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
	)
	return nil
}

func (s *SettlementService) loadOrder(orderID int64) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotExists
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

// forEachGiveProduct 주문 아이템에 연결된 지급 레코드 전부에 전이를 적용한다.
func (s *SettlementService) forEachGiveProduct(
	tx *gorm.DB,
	orderID int64,
	transition func(tx *gorm.DB, give *model.GiveProduct) error,
) error {
	items, err := s.orderRepo.FindItems(tx, orderID)
	if err != nil {
		return fmt.Errorf("find order items: %w", err)
	}
	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		itemIDs = append(itemIDs, item.ID)
	}

	gives, err := s.productRepo.FindGiveProductsByOrderItemIDs(tx, itemIDs)
	if err != nil {
		return fmt.Errorf("find give products: %w", err)
	}
	for i := range gives {
		if err := transition(tx, &gives[i]); err != nil {
			return err
		}
	}
	return nil
}

// publishEvent fire-and-forget 알림 발행.
func (s *SettlementService) publishEvent(order *model.Order, eventType string, status model.OrderStatus) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.PublishOrderEvent(&mq.OrderEventMessage{
		EventType:      eventType,
		OrderNumber:    order.OrderNumber,
		GuestID:        order.GuestID,
		Status:         string(status),
		TotalPaidPrice: order.TotalPaidPrice,
	})
	if err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("event_type", eventType),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err),
		)
	}
}
