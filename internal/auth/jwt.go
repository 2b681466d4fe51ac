package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DeviceTokenTTL bounds how long a handshake token stays valid.
const DeviceTokenTTL = 24 * time.Hour

const roleDevice = "device"

// JWTClaims represents the claims the voice server expects on a handshake
type JWTClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateDeviceToken signs an HS256 device token with secret.
func GenerateDeviceToken(secret []byte, deviceID string) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if deviceID == "" {
		return "", errors.New("device id is empty")
	}

	now := time.Now()
	claims := &JWTClaims{
		DeviceID: deviceID,
		Role:     roleDevice,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(DeviceTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// HandshakeHeader returns the header carrying a fresh bearer token for the
// websocket handshake.
func HandshakeHeader(secret []byte, deviceID string) (http.Header, error) {
	token, err := GenerateDeviceToken(secret, deviceID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header, nil
}
