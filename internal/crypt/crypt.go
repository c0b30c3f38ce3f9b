// Package crypt 는 비인증 콜백 URL 에 노출되는 주문 ID 를 난독화하는 대칭 토큰
// 암호화를 제공한다. 토큰 없이 주문 ID 를 순회/변조하는 것을 막는 용도다.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"

	"pointshop-backend/internal/apperrors"
)

// TokenCipher 는 서비스 계층에 주입되는 암호화 의존성이다.
type TokenCipher interface {
	EncryptID(id int64) (string, error)
	DecryptID(token string) (int64, error)
}

// AESTokenCipher 는 비밀키의 SHA-256 해시를 키로 쓰는 AES-256-GCM 구현이다.
type AESTokenCipher struct {
	aead cipher.AEAD
}

func New(secret string) (*AESTokenCipher, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESTokenCipher{aead: aead}, nil
}

// EncryptID 는 주문 ID 를 URL-safe 토큰으로 감싼다. nonce 가 매번 달라
// 같은 ID 라도 토큰은 매번 다르다.
func (c *AESTokenCipher) EncryptID(id int64) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	plain := make([]byte, 8)
	binary.BigEndian.PutUint64(plain, uint64(id))
	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// DecryptID 는 토큰을 복호화한다. 형식 오류, 변조, 잘못된 키 전부
// ErrInvalidToken 으로 묶는다.
func (c *AESTokenCipher) DecryptID(token string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return 0, apperrors.ErrInvalidToken
	}
	if len(raw) < c.aead.NonceSize() {
		return 0, apperrors.ErrInvalidToken
	}
	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil || len(plain) != 8 {
		return 0, apperrors.ErrInvalidToken
	}
	return int64(binary.BigEndian.Uint64(plain)), nil
}
