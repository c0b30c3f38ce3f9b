package service

import (
	"fmt"
	"testing"

	"pointshop-backend/internal/model"
	"pointshop-backend/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB 테스트마다 독립된 인메모리 DB 를 쓴다.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.PointProduct{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusLog{},
		&model.OrderItemStatusLog{},
		&model.OrderItemRefund{},
		&model.GiveProduct{},
		&model.GiveProductLog{},
		&model.GuestPoint{},
	))
	return db
}

type testEnv struct {
	db           *gorm.DB
	orderRepo    *repository.OrderRepository
	productRepo  *repository.ProductRepository
	pointRepo    *repository.PointRepository
	orders       *OrderService
	fulfillments *FulfillmentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	pointRepo := repository.NewPointRepository(db)
	log := zap.NewNop()
	return &testEnv{
		db:           db,
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		pointRepo:    pointRepo,
		orders:       NewOrderService(orderRepo, productRepo, log),
		fulfillments: NewFulfillmentService(productRepo, pointRepo, log),
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

// createPointProduct 가격 1000원에 1000 포인트를 주는 상품을 만든다.
func createPointProduct(t *testing.T, db *gorm.DB, leftQuantity *int64) *model.PointProduct {
	t.Helper()
	product := &model.PointProduct{
		Title:    "테스트 포인트 상품",
		Price:    1000,
		Point:    1000,
		IsActive: true,
	}
	if leftQuantity != nil {
		product.TotalQuantity = int64Ptr(*leftQuantity)
		product.LeftQuantity = int64Ptr(*leftQuantity)
	}
	require.NoError(t, db.Create(product).Error)
	return product
}
