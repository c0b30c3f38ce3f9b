package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pointshop-backend/internal/apperrors"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BenefitGranter 상품 타입별 지급/회수 전략. 지급 원장(GiveProduct)의 상태 전이와
// 실제 혜택 부여를 분리해서, 카탈로그 타입이 늘어도 정산 코드는 그대로 둔다.
type BenefitGranter interface {
	Give(tx *gorm.DB, give *model.GiveProduct) error
	Revoke(tx *gorm.DB, give *model.GiveProduct) error
}

// FulfillmentService 상품 지급 원장의 상태 전이를 담당한다.
//
// 주문 성공과 지급 성공은 별개 상태라 지급 실패만 따로 재시도할 수 있다.
type FulfillmentService struct {
	productRepo *repository.ProductRepository
	granters    map[model.ProductType]BenefitGranter
	logger      *zap.Logger
}

func NewFulfillmentService(
	productRepo *repository.ProductRepository,
	pointRepo *repository.PointRepository,
	logger *zap.Logger,
) *FulfillmentService {
	return &FulfillmentService{
		productRepo: productRepo,
		granters: map[model.ProductType]BenefitGranter{
			model.ProductTypePoint: &pointGranter{
				productRepo: productRepo,
				pointRepo:   pointRepo,
			},
		},
		logger: logger,
	}
}

// readyGiveProduct 지급 레코드를 READY 로 만들고 지급 계산 스냅샷을 남긴다.
// 스냅샷 덕에 상품이 나중에 삭제돼도 정산 금액은 주문 시점 기준으로 유지된다.
func readyGiveProduct(
	tx *gorm.DB,
	productRepo *repository.ProductRepository,
	orderItemID int64,
	guestID int64,
	productPK int64,
	productType model.ProductType,
	quantity int64,
	meta model.GiveProductMeta,
) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal give meta: %w", err)
	}
	give := &model.GiveProduct{
		OrderItemID: orderItemID,
		GuestID:     guestID,
		ProductPK:   productPK,
		ProductType: productType,
		Quantity:    quantity,
		MetaData:    string(raw),
		Status:      model.GiveStatusReady,
	}
	if err := productRepo.CreateGiveProduct(tx, give); err != nil {
		return fmt.Errorf("create give product: %w", err)
	}
	if err := productRepo.CreateGiveLog(tx, give.ID, model.GiveStatusReady); err != nil {
		return fmt.Errorf("create give product log: %w", err)
	}
	return nil
}

// Give READY -> SUCCESS 전이 후 혜택을 부여한다.
func (s *FulfillmentService) Give(tx *gorm.DB, give *model.GiveProduct) error {
	if give.Status != model.GiveStatusReady {
		return apperrors.ErrGiveUnavailableStatus
	}

	give.Status = model.GiveStatusSuccess
	if err := s.productRepo.SaveGiveProduct(tx, give); err != nil {
		return fmt.Errorf("save give product: %w", err)
	}
	if err := s.productRepo.CreateGiveLog(tx, give.ID, model.GiveStatusSuccess); err != nil {
		return fmt.Errorf("create give product log: %w", err)
	}

	granter, ok := s.granters[give.ProductType]
	if !ok {
		return apperrors.ErrUnavailablePayHandler
	}
	return granter.Give(tx, give)
}

// Cancel 지급 취소.
//
// 이전 상태가 SUCCESS 였을 때만 혜택을 회수한다. 회수가 실패하면 (예: 잔여
// 포인트 부족) 에러가 트랜잭션을 중단시켜 CANCEL 전이 자체가 남지 않는다.
func (s *FulfillmentService) Cancel(tx *gorm.DB, give *model.GiveProduct) error {
	if give.Status != model.GiveStatusReady && give.Status != model.GiveStatusSuccess {
		return apperrors.ErrGiveUnavailableStatus
	}

	beforeStatus := give.Status
	give.Status = model.GiveStatusCancel
	if err := s.productRepo.SaveGiveProduct(tx, give); err != nil {
		return fmt.Errorf("save give product: %w", err)
	}
	if err := s.productRepo.CreateGiveLog(tx, give.ID, model.GiveStatusCancel); err != nil {
		return fmt.Errorf("create give product log: %w", err)
	}

	if beforeStatus != model.GiveStatusSuccess {
		return nil
	}

	granter, ok := s.granters[give.ProductType]
	if !ok {
		return apperrors.ErrUnavailablePayHandler
	}
	return granter.Revoke(tx, give)
}

// Fail READY -> FAIL 전이. 혜택이 부여된 적이 없으므로 부수 효과가 없다.
func (s *FulfillmentService) Fail(tx *gorm.DB, give *model.GiveProduct) error {
	if give.Status != model.GiveStatusReady {
		return apperrors.ErrGiveUnavailableStatus
	}

	give.Status = model.GiveStatusFail
	if err := s.productRepo.SaveGiveProduct(tx, give); err != nil {
		return fmt.Errorf("save give product: %w", err)
	}
	return s.productRepo.CreateGiveLog(tx, give.ID, model.GiveStatusFail)
}

// pointGranter 포인트 상품의 지급/회수 구현.
type pointGranter struct {
	productRepo *repository.ProductRepository
	pointRepo   *repository.PointRepository
}

// Give 포인트를 적립한다. 현재 카탈로그 가격 기준이되, 상품이 삭제된 경우
// 주문 시점 스냅샷의 총 포인트로 대신한다.
func (g *pointGranter) Give(tx *gorm.DB, give *model.GiveProduct) error {
	var point int64
	product, err := g.productRepo.FindPointProduct(tx, give.ProductPK)
	switch {
	case err == nil:
		point = product.Point * give.Quantity
	case errors.Is(err, gorm.ErrRecordNotFound):
		meta, err := give.Meta()
		if err != nil {
			return fmt.Errorf("read give meta: %w", err)
		}
		point = meta.TotalPoint
	default:
		return fmt.Errorf("find point product: %w", err)
	}

	return g.pointRepo.Create(tx, &model.GuestPoint{
		GuestID:  give.GuestID,
		Point:    point,
		Reason:   model.PointReasonGive,
		IsActive: true,
	})
}

// Revoke 지급했던 포인트를 회수한다. 잔여 포인트가 지급분보다 적으면
// 잔액이 음수가 되므로 회수하지 않고 실패시킨다.
func (g *pointGranter) Revoke(tx *gorm.DB, give *model.GiveProduct) error {
	meta, err := give.Meta()
	if err != nil {
		return fmt.Errorf("read give meta: %w", err)
	}

	available, err := g.pointRepo.AvailableTotal(tx, give.GuestID, time.Now())
	if err != nil {
		return fmt.Errorf("sum available points: %w", err)
	}
	if available < meta.TotalPoint {
		return apperrors.ErrNotEnoughPointsForCancel
	}

	return g.pointRepo.Create(tx, &model.GuestPoint{
		GuestID:  give.GuestID,
		Point:    -meta.TotalPoint,
		Reason:   model.PointReasonRevoke,
		IsActive: true,
	})
}
