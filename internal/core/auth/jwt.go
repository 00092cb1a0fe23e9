package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tenant-user-api/internal/domain"
	"tenant-user-api/pkg/utils"
)

type Claims struct {
	Role    string `json:"role"`
	Company string `json:"company"`
	jwt.RegisteredClaims
}

type JWTOptions struct {
	Secret    string
	Algorithm string // HS256 | HS384 | HS512
	Issuer    string
	TTL       time.Duration
	TokenType string           // 例如 "Bearer"
	Now       func() time.Time // 测试可注入
}

// JWTCodec HMAC 签名的访问令牌编解码，不访问存储
type JWTCodec struct {
	secret    []byte
	method    *jwt.SigningMethodHMAC
	issuer    string
	ttl       time.Duration
	tokenType string
	now       func() time.Time
}

func NewJWTCodec(o JWTOptions) (*JWTCodec, error) {
	if o.Secret == "" {
		return nil, errors.New("jwt: empty secret")
	}
	if o.TTL <= 0 {
		return nil, errors.New("jwt: ttl must be positive")
	}
	alg := o.Algorithm
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}
	m, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", alg)
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}
	tt := o.TokenType
	if tt == "" {
		tt = "Bearer"
	}
	return &JWTCodec{
		secret:    []byte(o.Secret),
		method:    m,
		issuer:    o.Issuer,
		ttl:       o.TTL,
		tokenType: tt,
		now:       now,
	}, nil
}

func (j *JWTCodec) TokenType() string { return j.tokenType }

func (j *JWTCodec) Encode(who domain.Identity) (domain.AccessToken, error) {
	now := j.now()
	claims := Claims{
		Role:    string(who.Role),
		Company: who.CompanyID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	s, err := jwt.NewWithClaims(j.method, claims).SignedString(j.secret)
	if err != nil {
		return domain.AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.AccessToken{Token: s, Type: j.tokenType}, nil
}

// Decode 任意失败（签名/过期/字段缺失或格式错误）统一返回 ErrInvalidToken
func (j *JWTCodec) Decode(tokenStr string) (domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	var c Claims
	t, err := jwt.ParseWithClaims(tokenStr, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !t.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	who := domain.Identity{UserID: c.Subject, Role: domain.Role(c.Role), CompanyID: c.Company}
	if !utils.IsID(who.UserID) {
		return domain.Identity{}, fmt.Errorf("%w: malformed sub", domain.ErrInvalidToken)
	}
	if !utils.IsID(who.CompanyID) {
		return domain.Identity{}, fmt.Errorf("%w: malformed company", domain.ErrInvalidToken)
	}
	if !who.Role.Valid() {
		return domain.Identity{}, fmt.Errorf("%w: unknown role", domain.ErrInvalidToken)
	}
	return who, nil
}
