package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 商户令牌无效
var ErrTokenInvalid = errors.New("merchant token invalid")

// MerchantClaims 商户接口 JWT 声明
type MerchantClaims struct {
	MerchantNo string `json:"merchant_no"`
	jwt.RegisteredClaims
}

// GenerateMerchantToken 签发商户令牌
func GenerateMerchantToken(secret, merchantNo string, expireHours int, now time.Time) (string, time.Time, error) {
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)
	claims := MerchantClaims{
		MerchantNo: merchantNo,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   merchantNo,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseMerchantToken 校验商户令牌
func ParseMerchantToken(secret, tokenString string) (*MerchantClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &MerchantClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid || strings.TrimSpace(claims.MerchantNo) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
