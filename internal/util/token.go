package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"k8s.io/klog/v2"

	"github.com/envlocker/envlocker/dao/model"
	"github.com/envlocker/envlocker/pkg/config"
)

type (
	JWTClaims struct {
		UserID uint       `json:"ui"`
		Email  string     `json:"em"`
		Role   model.Role `json:"ro"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID uint       `json:"userID"`
		Email  string     `json:"email"`
		Role   model.Role `json:"role"` // Global role (admin, member, viewer)
	}
)

type TokenManager struct {
	accessSecret  string
	refreshSecret string
	accessTTL     int
	refreshTTL    int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		authConfig := config.GetConfig().Auth
		tokenMgr = newTokenManager(
			authConfig.AccessTokenSecret,
			authConfig.RefreshTokenSecret,
			authConfig.AccessExpiryHours,
			authConfig.RefreshExpiryHours,
		)
	})
	return tokenMgr
}

func newTokenManager(accessSecret, refreshSecret string, accessTTL, refreshTTL int) *TokenManager {
	return &TokenManager{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (tm *TokenManager) createToken(msg *JWTMessage, secret string, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID: msg.UserID,
		Email:  msg.Email,
		Role:   msg.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessSecret, tm.accessTTL)
	if err != nil {
		klog.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshSecret, tm.refreshTTL)
	if err != nil {
		klog.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) checkToken(requestToken, secret string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	return JWTMessage{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, err
}

func (tm *TokenManager) CheckAccessToken(requestToken string) (JWTMessage, error) {
	return tm.checkToken(requestToken, tm.accessSecret)
}

func (tm *TokenManager) CheckRefreshToken(requestToken string) (JWTMessage, error) {
	return tm.checkToken(requestToken, tm.refreshSecret)
}

// RefreshExpiry returns when a refresh token issued now expires, for the
// server side revocation record.
func (tm *TokenManager) RefreshExpiry() time.Time {
	return time.Now().UTC().Add(time.Hour * time.Duration(tm.refreshTTL))
}
