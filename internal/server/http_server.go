package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pointshop-backend/internal/apperrors"
	"pointshop-backend/internal/model"
	"pointshop-backend/internal/repository"
	"pointshop-backend/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// apiResponse 통일된 응답 포맷. code 0 이 성공, 그 외에는 머신 코드 문자열을 담는다.
type apiResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type Handler struct {
	settlement *service.SettlementService
	orderRepo  *repository.OrderRepository
	pointRepo  *repository.PointRepository
	logger     *zap.Logger
}

func NewHandler(
	settlement *service.SettlementService,
	orderRepo *repository.OrderRepository,
	pointRepo *repository.PointRepository,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		settlement: settlement,
		orderRepo:  orderRepo,
		pointRepo:  pointRepo,
		logger:     logger,
	}
}

// NewRouter 라우팅 등록.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/payments/ready", h.readyToPay)
		v1.GET("/payments/approve/:order_id", h.approvePayment)
		v1.POST("/payments/cancel/:order_token", h.cancelPayment)
		v1.POST("/payments/fail/:order_token", h.failPayment)

		v1.GET("/orders", h.listOrders)
		v1.GET("/guests/:guest_id/points", h.guestPoints)
	}
	return r
}

type readyToPayRequest struct {
	ProductID        int64  `json:"product_id" binding:"required"`
	ProductType      string `json:"product_type" binding:"required"`
	Quantity         int64  `json:"quantity" binding:"required,gt=0"`
	PaymentType      string `json:"payment_type" binding:"required"`
	OrderPhoneNumber string `json:"order_phone_number" binding:"required"`
	GuestID          int64  `json:"guest_id" binding:"required"`
	MemberID         *int64 `json:"member_id"`
}

func (h *Handler) readyToPay(c *gin.Context) {
	var req readyToPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Code: "invalid-request", Message: err.Error()})
		return
	}

	result, err := h.settlement.ReadyToPay(c.Request.Context(), service.ReadyToPayInput{
		ProductID:        req.ProductID,
		ProductType:      model.ProductType(req.ProductType),
		Quantity:         req.Quantity,
		PaymentMethod:    model.PaymentMethod(req.PaymentType),
		OrderPhoneNumber: req.OrderPhoneNumber,
		GuestID:          req.GuestID,
		MemberID:         req.MemberID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Code: "ok", Message: "success", Data: result})
}

func (h *Handler) approvePayment(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("order_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Code: "invalid-request", Message: "invalid order id"})
		return
	}
	pgToken := c.Query("pg_token")

	if err := h.settlement.ApprovePayment(c.Request.Context(), orderID, pgToken); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Code: "ok", Message: "결제가 완료되었습니다."})
}

type cancelPaymentRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelPayment(c *gin.Context) {
	var req cancelPaymentRequest
	// body 는 선택이다. 사유가 없으면 기본 사유를 쓴다.
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "결제 취소"
	}

	if err := h.settlement.CancelPayment(c.Request.Context(), c.Param("order_token"), req.Reason); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Code: "ok", Message: "결제가 취소되었습니다."})
}

func (h *Handler) failPayment(c *gin.Context) {
	if err := h.settlement.FailPayment(c.Request.Context(), c.Param("order_token")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{Code: "ok", Message: "결제가 실패되었습니다."})
}

type orderListData struct {
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Orders   []model.Order `json:"orders"`
}

func (h *Handler) listOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	guestID, _ := strconv.ParseInt(c.Query("guest_id"), 10, 64)

	filter := repository.OrderFilter{
		OrderNumber: c.Query("order_number"),
		GuestID:     guestID,
		Page:        page,
		PageSize:    pageSize,
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := model.OrderStatus(statusStr)
		filter.Status = &status
	}

	orders, total, err := h.orderRepo.List(filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	filter.Normalize()

	c.JSON(http.StatusOK, apiResponse{
		Code:    "ok",
		Message: "success",
		Data: orderListData{
			Total:    total,
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Orders:   orders,
		},
	})
}

func (h *Handler) guestPoints(c *gin.Context) {
	guestID, err := strconv.ParseInt(c.Param("guest_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Code: "invalid-request", Message: "invalid guest id"})
		return
	}

	total, err := h.pointRepo.AvailableTotal(h.pointRepo.DB(), guestID, time.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, apiResponse{
		Code:    "ok",
		Message: "success",
		Data:    gin.H{"guest_id": guestID, "total_point": total},
	})
}

// writeError 정의된 실패 유형은 (코드, 메시지) 그대로, 나머지는 내부를 숨긴
// 일반 오류로 내린다.
func (h *Handler) writeError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, apiResponse{Code: appErr.Code, Message: appErr.Message})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, apiResponse{Code: "not-found", Message: "리소스를 찾을 수 없습니다."})
		return
	}
	h.logger.Error("unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, apiResponse{
		Code:    "internal-error",
		Message: "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요.",
	})
}
