package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointshop-backend/internal/config"
	"pointshop-backend/internal/crypt"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/mq"
	"pointshop-backend/internal/repository"
	"pointshop-backend/internal/server"
	"pointshop-backend/internal/service"
	"pointshop-backend/pkg/kakaopay"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 1. 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("설정 로드 실패: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("로거 초기화 실패: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("설정 로드 완료", zap.Int("http_port", cfg.HTTPPort))

	// 2. 데이터베이스 연결 (Silent 모드로 SQL 은 숨기고 오류만 출력)
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		zlog.Fatal("데이터베이스 연결 실패", zap.Error(err))
	}
	zlog.Info("데이터베이스 연결 완료")

	// 자동 마이그레이션
	if err := db.AutoMigrate(
		&model.PointProduct{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderStatusLog{},
		&model.OrderItemStatusLog{},
		&model.OrderItemRefund{},
		&model.GiveProduct{},
		&model.GiveProductLog{},
		&model.GuestPoint{},
	); err != nil {
		zlog.Fatal("데이터베이스 마이그레이션 실패", zap.Error(err))
	}
	zlog.Info("데이터베이스 마이그레이션 완료")

	// 3. RabbitMQ 연결
	mqClient, err := mq.NewRabbitMQ(cfg.RabbitMQURL, zlog)
	if err != nil {
		zlog.Fatal("RabbitMQ 연결 실패", zap.Error(err))
	}
	defer mqClient.Close()
	zlog.Info("RabbitMQ 연결 완료")

	// 4. 주문 토큰 암호화기
	cipher, err := crypt.New(cfg.SecretKey)
	if err != nil {
		zlog.Fatal("토큰 암호화기 초기화 실패", zap.Error(err))
	}

	// 5. Repository 초기화
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	pointRepo := repository.NewPointRepository(db)

	// 6. Service 초기화
	gateway := kakaopay.NewClient(cfg.KakaoPayAPIURL, cfg.KakaoPaySecretKey, cfg.KakaoPayCID)
	orderService := service.NewOrderService(orderRepo, productRepo, zlog)
	fulfillmentService := service.NewFulfillmentService(productRepo, pointRepo, zlog)
	settlementService := service.NewSettlementService(
		orderRepo, productRepo, pointRepo,
		orderService, fulfillmentService,
		gateway, cipher, mqClient, cfg.CallbackBaseDomain, zlog,
	)

	// 7. HTTP 서버 기동
	handler := server.NewHandler(settlementService, orderRepo, pointRepo, zlog)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: server.NewRouter(handler),
	}
	go func() {
		zlog.Info("HTTP 서버 기동", zap.Int("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("HTTP 서버 오류", zap.Error(err))
		}
	}()

	// 8. 우아한 종료
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zlog.Info("종료 신호 수신", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("HTTP 서버 종료 오류", zap.Error(err))
	}
	zlog.Info("서비스 종료 완료")
}
