// Package apperrors 는 정산 흐름에서 호출자에게 그대로 노출되는 실패 유형을 정의한다.
// 각 오류는 안정적인 머신 코드와 사용자 메시지, HTTP 상태로 매핑된다.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrOrderNotExists = &AppError{
		Code:       "order-not-exists",
		Message:    "존재하지 않는 주문입니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrOrderAlreadyCanceled = &AppError{
		Code:       "order-already-canceled",
		Message:    "이미 취소된 주문입니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrOrderUnavailableStatus = &AppError{
		Code:       "order-status-unavailable-behavior",
		Message:    "주문의 상태가 유효하지 않습니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrProductNotExists = &AppError{
		Code:       "product-not-exists",
		Message:    "상품이 존재하지 않습니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrStockNotEnough = &AppError{
		Code:       "product-stock-not-enough",
		Message:    "상품 재고가 부족합니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrNotEnoughPointsForCancel = &AppError{
		Code:       "cannot-cancel-order-with-guest-points",
		Message:    "사용한 포인트가 존재하여 주문 취소를 실패했습니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrGiveUnavailableStatus = &AppError{
		Code:       "give-product-status-unavailable-behavior",
		Message:    "상품 지급 상태가 유효하지 않습니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrInvalidToken = &AppError{
		Code:       "invalid-order-token",
		Message:    "유효하지 않은 주문 토큰입니다.",
		HTTPStatus: http.StatusBadRequest,
	}
	ErrUnavailablePayHandler = &AppError{
		Code:       "cannot-buy-with-specific-payment",
		Message:    "해당 결제로 구매할 수 없는 상품입니다.",
		HTTPStatus: http.StatusBadRequest,
	}
)

type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// GatewayError 는 결제사 비정상 응답이다. 결제사가 내려준 사용자 메시지가 있으면
// 그대로 담는다.
type GatewayError struct {
	Operation string // ready / approve / cancel
	Message   string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("kakaopay %s failed: %s", e.Operation, e.Message)
}

// AsAppError 는 정의된 실패 유형이면 (코드, 메시지, 상태) 를 돌려준다.
// GatewayError 도 여기서 변환한다. 그 외는 false.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return &AppError{
			Code:       "kakao-pay-" + gwErr.Operation + "-failed",
			Message:    gwErr.Message,
			HTTPStatus: http.StatusBadRequest,
		}, true
	}
	return nil, false
}
