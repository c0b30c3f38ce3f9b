// Package kakaopay 는 카카오페이 단건 결제 API(ready/approve/cancel) 클라이언트다.
// https://developers.kakao.com/docs/latest/ko/kakaopay/single-payment
package kakaopay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pointshop-backend/internal/apperrors"
)

const (
	readyPath   = "/online/v1/payment/ready"
	approvePath = "/online/v1/payment/approve"
	cancelPath  = "/online/v1/payment/cancel"

	// 결제사 호출은 재시도하지 않는다. 타임아웃만 걸고 실패는 호출자에게 넘긴다.
	defaultTimeout = 30 * time.Second
)

type Client struct {
	baseURL    string
	secretKey  string
	cid        string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey, cid string) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		cid:       cid,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ReadyRequest 결제 준비 요청.
type ReadyRequest struct {
	OrderID       string
	GuestID       string
	ProductName   string
	TotalAmount   int64
	TaxFreeAmount int64
	ApprovalURL   string
	CancelURL     string
	FailURL       string
}

type ReadyResponse struct {
	Tid                   string `json:"tid"`
	NextRedirectAppURL    string `json:"next_redirect_app_url"`
	NextRedirectMobileURL string `json:"next_redirect_mobile_url"`
	NextRedirectPCURL     string `json:"next_redirect_pc_url"`
	AndroidAppScheme      string `json:"android_app_scheme"`
	IOSAppScheme          string `json:"ios_app_scheme"`
	CreatedAt             string `json:"created_at"`
}

type Amount struct {
	Total    int64 `json:"total"`
	TaxFree  int64 `json:"tax_free"`
	Vat      int64 `json:"vat"`
	Point    int64 `json:"point"`
	Discount int64 `json:"discount"`
}

type ApproveResponse struct {
	Aid               string `json:"aid"`
	Tid               string `json:"tid"`
	Cid               string `json:"cid"`
	PartnerOrderID    string `json:"partner_order_id"`
	PartnerUserID     string `json:"partner_user_id"`
	PaymentMethodType string `json:"payment_method_type"`
	ItemName          string `json:"item_name"`
	Quantity          int64  `json:"quantity"`
	Amount            Amount `json:"amount"`
	CreatedAt         string `json:"created_at"`
	ApprovedAt        string `json:"approved_at"`
}

type CancelResponse struct {
	Aid                   string `json:"aid"`
	Tid                   string `json:"tid"`
	Cid                   string `json:"cid"`
	Status                string `json:"status"`
	PaymentMethodType     string `json:"payment_method_type"`
	Amount                Amount `json:"amount"`
	ApprovedCancelAmount  Amount `json:"approved_cancel_amount"`
	CanceledAmount        Amount `json:"canceled_amount"`
	CancelAvailableAmount Amount `json:"cancel_available_amount"`
	CanceledAt            string `json:"canceled_at"`
}

// errorEnvelope 카카오페이 오류 응답. extras 가 있으면 사용자에게 보여줄 메시지가 담긴다.
type errorEnvelope struct {
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	Extras       *struct {
		MethodResultCode    string `json:"method_result_code"`
		MethodResultMessage string `json:"method_result_message"`
	} `json:"extras"`
}

// Ready 결제 준비. 성공 시 tid 와 리다이렉트 URL 들을 받는다.
func (c *Client) Ready(ctx context.Context, req ReadyRequest) (*ReadyResponse, error) {
	payload := map[string]interface{}{
		"cid":              c.cid,
		"partner_order_id": req.OrderID,
		"partner_user_id":  req.GuestID,
		"item_name":        req.ProductName,
		"quantity":         "1",
		"total_amount":     req.TotalAmount,
		"tax_free_amount":  req.TaxFreeAmount,
		"approval_url":     req.ApprovalURL,
		"cancel_url":       req.CancelURL,
		"fail_url":         req.FailURL,
	}
	var resp ReadyResponse
	if err := c.post(ctx, readyPath, "ready", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Approve 결제 승인. 사용자가 결제창에서 인증을 마치면 받은 pg_token 으로 호출한다.
func (c *Client) Approve(ctx context.Context, tid, pgToken, orderID, guestID string) (*ApproveResponse, error) {
	payload := map[string]interface{}{
		"cid":              c.cid,
		"tid":              tid,
		"partner_order_id": orderID,
		"partner_user_id":  guestID,
		"pg_token":         pgToken,
	}
	var resp ApproveResponse
	if err := c.post(ctx, approvePath, "approve", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel 결제 취소. payload 는 200자를 넘으면 안 된다.
func (c *Client) Cancel(ctx context.Context, tid string, cancelAmount, cancelTaxFreeAmount int64, payload string) (*CancelResponse, error) {
	body := map[string]interface{}{
		"cid":                    c.cid,
		"tid":                    tid,
		"cancel_amount":          cancelAmount,
		"cancel_tax_free_amount": cancelTaxFreeAmount,
		"payload":                payload,
	}
	var resp CancelResponse
	if err := c.post(ctx, cancelPath, "cancel", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// post 공통 호출. 400 + extras 는 결제사가 내려준 메시지를 그대로 담아 올리고,
// 그 외 비정상 상태 코드는 고정 메시지의 GatewayError 로 묶는다.
func (c *Client) post(ctx context.Context, path, operation string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "SECRET_KEY "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call kakaopay %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", operation, err)
	}

	if resp.StatusCode == http.StatusBadRequest {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Extras != nil {
			return &apperrors.GatewayError{
				Operation: operation,
				Message:   envelope.Extras.MethodResultMessage,
			}
		}
	}
	if resp.StatusCode != http.StatusOK {
		return &apperrors.GatewayError{
			Operation: operation,
			Message:   fallbackMessage(operation),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func fallbackMessage(operation string) string {
	switch operation {
	case "cancel":
		return "카카오페이 결제 취소에 실패하였습니다."
	default:
		return "카카오페이 결제에 실패하였습니다."
	}
}
