package repository

import (
	"testing"
	"time"

	"pointshop-backend/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestFindActivePointProduct(t *testing.T) {
	db := openTestDB(t)
	repo := NewProductRepository(db)

	product := &model.PointProduct{
		Title:    "포인트 상품",
		Price:    1000,
		Point:    1000,
		IsActive: true,
	}
	require.NoError(t, db.Create(product).Error)

	found, err := repo.FindActivePointProduct(product.ID, time.Now())
	require.NoError(t, err)
	require.Equal(t, product.ID, found.ID)
}

func TestFindActivePointProductExcludesInactive(t *testing.T) {
	db := openTestDB(t)
	repo := NewProductRepository(db)

	// IsActive: false 가 Create 에서 생략되지 않고 그대로 저장되어야 한다.
	product := &model.PointProduct{
		Title:    "비활성 상품",
		Price:    1000,
		Point:    1000,
		IsActive: false,
	}
	require.NoError(t, db.Create(product).Error)

	var stored model.PointProduct
	require.NoError(t, db.First(&stored, product.ID).Error)
	require.False(t, stored.IsActive)

	_, err := repo.FindActivePointProduct(product.ID, time.Now())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindActivePointProductRespectsSaleWindow(t *testing.T) {
	db := openTestDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	ended := now.Add(-time.Hour)
	product := &model.PointProduct{
		Title:    "판매 종료 상품",
		Price:    1000,
		Point:    1000,
		IsActive: true,
		EndTime:  &ended,
	}
	require.NoError(t, db.Create(product).Error)

	_, err := repo.FindActivePointProduct(product.ID, now)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
