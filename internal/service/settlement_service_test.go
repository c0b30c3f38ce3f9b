package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pointshop-backend/internal/apperrors"
	"pointshop-backend/internal/crypt"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/mq"
	"pointshop-backend/pkg/kakaopay"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGateway 카카오페이 API 를 흉내낸다. 호출 경로를 기록한다.
type fakeGateway struct {
	mu    sync.Mutex
	calls []string

	approveMethodType string
	failCancel        bool
}

func (f *fakeGateway) record(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
}

func (f *fakeGateway) called(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == path {
			return true
		}
	}
	return false
}

func (f *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/online/v1/payment/ready", func(w http.ResponseWriter, r *http.Request) {
		f.record("ready")
		json.NewEncoder(w).Encode(map[string]string{
			"tid":                      "T1234567890",
			"next_redirect_app_url":    "https://pay.test/app",
			"next_redirect_mobile_url": "https://pay.test/mobile",
			"next_redirect_pc_url":     "https://pay.test/pc",
		})
	})
	mux.HandleFunc("/online/v1/payment/approve", func(w http.ResponseWriter, r *http.Request) {
		f.record("approve")
		methodType := f.approveMethodType
		if methodType == "" {
			methodType = "CARD"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tid":                 "T1234567890",
			"payment_method_type": methodType,
		})
	})
	mux.HandleFunc("/online/v1/payment/cancel", func(w http.ResponseWriter, r *http.Request) {
		f.record("cancel")
		if f.failCancel {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"tid":    "T1234567890",
			"status": "CANCEL_PAYMENT",
		})
	})
	return mux
}

// fakeNotifier 발행된 이벤트를 메모리에 쌓는다.
type fakeNotifier struct {
	mu     sync.Mutex
	events []*mq.OrderEventMessage
}

func (f *fakeNotifier) PublishOrderEvent(msg *mq.OrderEventMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, msg)
	return nil
}

func (f *fakeNotifier) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.events))
	for _, e := range f.events {
		types = append(types, e.EventType)
	}
	return types
}

type settlementEnv struct {
	*testEnv
	settlement *SettlementService
	cipher     crypt.TokenCipher
	gateway    *fakeGateway
	notifier   *fakeNotifier
}

func newSettlementEnv(t *testing.T) *settlementEnv {
	t.Helper()
	base := newTestEnv(t)

	gw := &fakeGateway{}
	server := httptest.NewServer(gw.handler())
	t.Cleanup(server.Close)

	cipher, err := crypt.New("test-secret-key")
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	settlement := NewSettlementService(
		base.orderRepo, base.productRepo, base.pointRepo,
		base.orders, base.fulfillments,
		kakaopay.NewClient(server.URL, "fake-secret", "TC0ONETIME"),
		cipher, notifier, "https://shop.test", zap.NewNop(),
	)
	return &settlementEnv{
		testEnv:    base,
		settlement: settlement,
		cipher:     cipher,
		gateway:    gw,
		notifier:   notifier,
	}
}

// readyOrder 결제 준비까지 마친 주문을 만들어 돌려준다.
func (e *settlementEnv) readyOrder(t *testing.T, product *model.PointProduct, quantity int64) *ReadyToPayResult {
	t.Helper()
	result, err := e.settlement.ReadyToPay(context.Background(), ReadyToPayInput{
		ProductID:        product.ID,
		ProductType:      model.ProductTypePoint,
		Quantity:         quantity,
		PaymentMethod:    model.PaymentMethodKakaoPay,
		OrderPhoneNumber: "010-1234-5678",
		GuestID:          7,
	})
	require.NoError(t, err)
	return result
}

func TestReadyToPay(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, int64Ptr(10))

	result := env.readyOrder(t, product, 3)
	require.Equal(t, "T1234567890", result.Tid)
	require.NotEmpty(t, result.NextRedirectPCURL)
	require.Len(t, result.OrderNumber, 17)
	require.True(t, strings.HasPrefix(result.OrderNumber, "P1"))

	// tid 가 주문에 저장되고 재고가 차감된다.
	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, "T1234567890", order.Tid)
	require.Equal(t, model.OrderStatusReady, order.Status)
	require.Equal(t, int64(3000), order.TotalPaidPrice)

	var fresh model.PointProduct
	require.NoError(t, env.db.First(&fresh, product.ID).Error)
	require.Equal(t, int64(7), *fresh.LeftQuantity)

	require.True(t, env.gateway.called("ready"))
}

func TestReadyToPayUnknownProductType(t *testing.T) {
	env := newSettlementEnv(t)

	_, err := env.settlement.ReadyToPay(context.Background(), ReadyToPayInput{
		ProductID:     1,
		ProductType:   "DELIVERY",
		Quantity:      1,
		PaymentMethod: model.PaymentMethodKakaoPay,
		GuestID:       7,
	})
	require.ErrorIs(t, err, apperrors.ErrUnavailablePayHandler)
}

func TestReadyToPayProductNotFound(t *testing.T) {
	env := newSettlementEnv(t)

	_, err := env.settlement.ReadyToPay(context.Background(), ReadyToPayInput{
		ProductID:     999,
		ProductType:   model.ProductTypePoint,
		Quantity:      1,
		PaymentMethod: model.PaymentMethodKakaoPay,
		GuestID:       7,
	})
	require.ErrorIs(t, err, apperrors.ErrProductNotExists)
}

func TestReadyToPayInactiveProduct(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	require.NoError(t, env.db.Model(product).Update("is_active", false).Error)

	_, err := env.settlement.ReadyToPay(context.Background(), ReadyToPayInput{
		ProductID:     product.ID,
		ProductType:   model.ProductTypePoint,
		Quantity:      1,
		PaymentMethod: model.PaymentMethodKakaoPay,
		GuestID:       7,
	})
	require.ErrorIs(t, err, apperrors.ErrProductNotExists)
}

func TestApprovePayment(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, int64Ptr(10))
	result := env.readyOrder(t, product, 3)

	require.NoError(t, env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token"))

	// 주문/아이템/지급 전부 SUCCESS, 포인트가 적립된다.
	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusSuccess, order.Status)
	require.Equal(t, model.PaymentMethodKakaoPayCard, *order.PaymentMethod)

	var gives []model.GiveProduct
	require.NoError(t, env.db.Find(&gives).Error)
	require.Len(t, gives, 1)
	require.Equal(t, model.GiveStatusSuccess, gives[0].Status)

	total, err := env.pointRepo.AvailableTotal(env.db, 7, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(3000), total)

	require.Equal(t, []string{"order_approved"}, env.notifier.eventTypes())
}

func TestApprovePaymentMoneyMethod(t *testing.T) {
	env := newSettlementEnv(t)
	env.gateway.approveMethodType = "MONEY"
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	require.NoError(t, env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token"))

	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentMethodKakaoPayMoney, *order.PaymentMethod)
}

func TestApprovePaymentUnknownOrder(t *testing.T) {
	env := newSettlementEnv(t)

	err := env.settlement.ApprovePayment(context.Background(), 999, "pg-token")
	require.ErrorIs(t, err, apperrors.ErrOrderNotExists)
	require.False(t, env.gateway.called("approve"))
}

func TestApprovePaymentIdempotencyGuard(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	require.NoError(t, env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token"))

	// 같은 콜백이 두 번 와도 두 번째는 상태 가드에 걸린다.
	err := env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token")
	require.ErrorIs(t, err, apperrors.ErrOrderUnavailableStatus)

	// 포인트도 한 번만 적립된다.
	total, err2 := env.pointRepo.AvailableTotal(env.db, 7, time.Now())
	require.NoError(t, err2)
	require.Equal(t, int64(1000), total)
}

func TestCancelPaymentAfterApprove(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, int64Ptr(10))
	result := env.readyOrder(t, product, 3)
	require.NoError(t, env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token"))

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	require.NoError(t, env.settlement.CancelPayment(context.Background(), token, "단순 변심"))

	// 결제 완료 주문 취소는 전액 환불이다.
	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusRefund, order.Status)
	require.Equal(t, int64(3000), order.TotalRefundedPrice)

	var gives []model.GiveProduct
	require.NoError(t, env.db.Find(&gives).Error)
	require.Equal(t, model.GiveStatusCancel, gives[0].Status)

	// 지급 포인트는 회수되어 잔액 0.
	total, err := env.pointRepo.AvailableTotal(env.db, 7, time.Now())
	require.NoError(t, err)
	require.Zero(t, total)

	// 로컬 취소 커밋 후 결제사 취소가 호출된다.
	require.True(t, env.gateway.called("cancel"))
	require.Equal(t, []string{"order_approved", "order_canceled"}, env.notifier.eventTypes())
}

func TestCancelPaymentBeforeApprove(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	require.NoError(t, env.settlement.CancelPayment(context.Background(), token, "결제 취소"))

	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancel, order.Status)
	require.Zero(t, order.TotalRefundedPrice)
}

func TestCancelPaymentInvalidToken(t *testing.T) {
	env := newSettlementEnv(t)

	err := env.settlement.CancelPayment(context.Background(), "not-a-valid-token", "결제 취소")
	require.ErrorIs(t, err, apperrors.ErrOrderNotExists)
}

func TestCancelPaymentTwice(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	require.NoError(t, env.settlement.CancelPayment(context.Background(), token, "결제 취소"))

	err = env.settlement.CancelPayment(context.Background(), token, "결제 취소")
	require.ErrorIs(t, err, apperrors.ErrOrderAlreadyCanceled)
}

func TestCancelPaymentRejectsTerminalStatus(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	require.NoError(t, env.settlement.FailPayment(context.Background(), token))

	// FAIL 은 종료 상태라 취소 대상이 아니다.
	err = env.settlement.CancelPayment(context.Background(), token, "결제 취소")
	require.ErrorIs(t, err, apperrors.ErrOrderUnavailableStatus)
	require.False(t, env.gateway.called("cancel"))
}

func TestCancelPaymentBlockedBySpentPoints(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)
	require.NoError(t, env.settlement.ApprovePayment(context.Background(), result.OrderID, "pg-token"))

	// 지급받은 포인트를 이미 써버렸다.
	require.NoError(t, env.db.Create(&model.GuestPoint{
		GuestID:  7,
		Point:    -800,
		Reason:   "포인트 사용",
		IsActive: true,
	}).Error)

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	err = env.settlement.CancelPayment(context.Background(), token, "결제 취소")
	require.ErrorIs(t, err, apperrors.ErrNotEnoughPointsForCancel)

	// 트랜잭션이 롤백되어 주문은 SUCCESS 로 남고 결제사 취소도 호출되지 않는다.
	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusSuccess, order.Status)
	require.False(t, env.gateway.called("cancel"))
}

func TestFailPayment(t *testing.T) {
	env := newSettlementEnv(t)
	product := createPointProduct(t, env.db, nil)
	result := env.readyOrder(t, product, 1)

	token, err := env.cipher.EncryptID(result.OrderID)
	require.NoError(t, err)
	require.NoError(t, env.settlement.FailPayment(context.Background(), token))

	order, err := env.orderRepo.FindByID(result.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusFail, order.Status)

	var gives []model.GiveProduct
	require.NoError(t, env.db.Find(&gives).Error)
	require.Equal(t, model.GiveStatusFail, gives[0].Status)

	// 실패 정산은 결제사를 호출하지 않는다.
	require.False(t, env.gateway.called("cancel"))
	require.Equal(t, []string{"order_failed"}, env.notifier.eventTypes())
}

func TestFailPaymentInvalidToken(t *testing.T) {
	env := newSettlementEnv(t)

	err := env.settlement.FailPayment(context.Background(), "garbage")
	require.ErrorIs(t, err, apperrors.ErrOrderNotExists)
}
