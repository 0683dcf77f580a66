// Package auth scopes requests to an organization: managers log in with a
// password and receive a JWT, integrations use HMAC-signed API keys.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/arnavshah/rota-engine/pkg/database"
	"github.com/arnavshah/rota-engine/pkg/models"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
	ErrRevokedKey   = errors.New("api key revoked")
)

// PasswordCost is the bcrypt cost of new password hashes.
var PasswordCost = 14

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	OrganizationID string `json:"organization_id"`
	Username       string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator signs and verifies credentials.
type Authenticator struct {
	jwtSecret []byte
	keySecret []byte
	expiry    time.Duration
	now       func() time.Time
}

// New returns an authenticator. Tokens are valid for expiry.
func New(jwtSecret, keySecret string, expiry time.Duration) *Authenticator {
	return &Authenticator{
		jwtSecret: []byte(jwtSecret),
		keySecret: []byte(keySecret),
		expiry:    expiry,
		now:       time.Now,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken issues a JWT for a manager of organizationID.
func (a *Authenticator) CreateToken(organizationID, username string) (string, error) {
	now := a.now()
	claims := &Claims{
		OrganizationID: organizationID,
		Username:       username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.OrganizationID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateKey creates an API key "<organizationID>.<hex hmac>".
func (a *Authenticator) GenerateKey(organizationID string) string {
	return organizationID + "." + a.sign(organizationID)
}

// VerifyKey returns the organization an API key belongs to.
func (a *Authenticator) VerifyKey(key string) (string, error) {
	organizationID, signature, ok := strings.Cut(key, ".")
	if !ok || organizationID == "" || strings.Contains(signature, ".") {
		return "", ErrInvalidKey
	}

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(signature), []byte(a.sign(organizationID))) {
		return "", ErrInvalidKey
	}
	return organizationID, nil
}

func (a *Authenticator) sign(organizationID string) string {
	h := hmac.New(sha256.New, a.keySecret)
	h.Write([]byte(organizationID))
	return hex.EncodeToString(h.Sum(nil))
}

// Login checks a manager's password.
func Login(db *gorm.DB, username, password string) (*database.Manager, error) {
	var m database.Manager
	if err := db.Where("username = ?", username).First(&m).Error; err != nil {
		return nil, err
	}
	if !CheckPasswordHash(password, m.PasswordHash) {
		return nil, errors.New("invalid credentials")
	}
	return &m, nil
}

// TouchAPIKey records the use of a verified key, creating its row on first use.
// It returns ErrRevokedKey for a revoked key.
func TouchAPIKey(db *gorm.DB, key, organizationID string) (*database.APIKey, error) {
	var apiKey database.APIKey
	err := db.Where(database.APIKey{Key: key}).
		Attrs(database.APIKey{OrganizationID: organizationID, Name: organizationID}).
		FirstOrCreate(&apiKey).Error
	if err != nil {
		return nil, err
	}
	if apiKey.Revoked {
		return nil, ErrRevokedKey
	}
	now := time.Now()
	apiKey.LastUsed = &now
	if err := db.Model(&apiKey).Update("last_used", now).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}

// EnsureManager creates the first manager when none exists. Without an
// organization a default one is created for it.
func EnsureManager(db *gorm.DB, username, password string, log *zap.Logger) error {
	var count int64
	if err := db.Model(&database.Manager{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 || password == "" {
		return nil
	}
	if username == "" {
		username = "admin"
	}

	var org models.Organization
	err := db.Order("created_at").First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		org = models.Organization{Name: "Default organization"}
		err = db.Create(&org).Error
	}
	if err != nil {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if err := db.Create(&database.Manager{
		OrganizationID: org.ID,
		Username:       username,
		PasswordHash:   hash,
	}).Error; err != nil {
		return err
	}
	log.Info("default manager created", zap.String("username", username), zap.String("organization_id", org.ID))
	return nil
}
