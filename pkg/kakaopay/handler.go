package kakaopay

import (
	"fmt"

	"pointshop-backend/internal/crypt"
)

// Handler 결제 준비 시 결제사에 넘기는 콜백 URL 묶음.
//
// cancel/fail URL 은 인증 없이 브라우저 리다이렉트로 호출되므로 주문 ID 를
// 암호화 토큰으로 감싼다. approve URL 은 결제사가 발급한 pg_token 없이는
// 승인이 불가능해 원본 ID 를 그대로 쓴다.
type Handler struct {
	ApprovalURL string
	CancelURL   string
	FailURL     string
}

// NewProductHandler 상품 구매 결제의 콜백 URL 을 만든다.
func NewProductHandler(baseDomain string, orderID int64, cipher crypt.TokenCipher) (Handler, error) {
	token, err := cipher.EncryptID(orderID)
	if err != nil {
		return Handler{}, fmt.Errorf("encrypt order id: %w", err)
	}
	return Handler{
		ApprovalURL: fmt.Sprintf("%s/api/v1/payments/approve/%d", baseDomain, orderID),
		CancelURL:   fmt.Sprintf("%s/api/v1/payments/cancel/%s", baseDomain, token),
		FailURL:     fmt.Sprintf("%s/api/v1/payments/fail/%s", baseDomain, token),
	}, nil
}
