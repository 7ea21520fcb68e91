package deliverytoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// Claims is the typed JWT handed to the courier when an order ships. The
// retailer presents it back to confirm delivery, which proves possession of
// the shipped parcel rather than just knowledge of the order ID.
type Claims struct {
	OrderID      uuid.UUID `json:"order_id"`
	WholesalerID uuid.UUID `json:"wholesaler_id"`
	jwt.RegisteredClaims
}

// Mint issues a signed delivery confirmation token for the order.
func Mint(cfg config.DeliveryTokenConfig, now time.Time, orderID, wholesalerID uuid.UUID) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("delivery token secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("delivery token issuer is required")
	}
	if cfg.TTL <= 0 {
		return "", fmt.Errorf("delivery token ttl must be positive")
	}
	if orderID == uuid.Nil {
		return "", fmt.Errorf("order id is required")
	}
	if wholesalerID == uuid.Nil {
		return "", fmt.Errorf("wholesaler id is required")
	}

	claims := Claims{
		OrderID:      orderID,
		WholesalerID: wholesalerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   orderID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing delivery token: %w", err)
	}
	return signed, nil
}

// Parse validates the token string and returns typed claims.
func Parse(cfg config.DeliveryTokenConfig, tokenString string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("delivery token secret is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
