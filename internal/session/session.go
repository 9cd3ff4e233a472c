// Package session issues and resolves the signed, encrypted session cookie.
// The cookie value is an HS256 JWT sealed with AES-256-GCM under a key
// derived from the session secret, so tokens are both tamper-evident and
// opaque to the browser.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// CookieName is the session cookie name.
const CookieName = "mediay_session"

// DefaultDuration is the session lifetime when issuing a cookie.
const DefaultDuration = 14 * 24 * time.Hour

// ErrAnonymous indicates the request carries no usable session.
var ErrAnonymous = errors.New("session: anonymous")

// Identity is the authenticated principal stored in a session.
type Identity struct {
	UserID uint64 `json:"userId"`
	Email  string `json:"email"`
}

// claims is the JWT payload carried inside the sealed cookie value.
type claims struct {
	UserID uint64 `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Manager seals and unseals session cookie values.
type Manager struct {
	signKey  []byte
	sealKey  []byte
	duration time.Duration
	secure   bool
}

// NewManager derives signing and sealing keys from the session secret.
// An empty secret is a configuration error.
func NewManager(secret string, secure bool) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session: empty secret")
	}

	signKey, errSign := deriveKey(secret, "mediay-session-sign")
	if errSign != nil {
		return nil, errSign
	}
	sealKey, errSeal := deriveKey(secret, "mediay-session-seal")
	if errSeal != nil {
		return nil, errSeal
	}

	return &Manager{
		signKey:  signKey,
		sealKey:  sealKey,
		duration: DefaultDuration,
		secure:   secure,
	}, nil
}

// deriveKey expands the secret into a 32-byte key for the given purpose.
func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("session: derive key: %w", err)
	}
	return key, nil
}

// Issue produces a sealed cookie value for the identity.
func (m *Manager) Issue(id Identity) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: id.UserID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
	})
	signed, errSign := token.SignedString(m.signKey)
	if errSign != nil {
		return "", fmt.Errorf("session: sign token: %w", errSign)
	}
	return m.seal([]byte(signed))
}

// Resolve unseals and verifies a cookie value. Any failure resolves to
// ErrAnonymous rather than a distinct error: a bad cookie and no cookie
// look the same to callers.
func (m *Manager) Resolve(value string) (Identity, error) {
	raw, errOpen := m.open(value)
	if errOpen != nil {
		return Identity{}, ErrAnonymous
	}

	var c claims
	token, errParse := jwt.ParseWithClaims(string(raw), &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signKey, nil
	})
	if errParse != nil || !token.Valid || c.UserID == 0 {
		return Identity{}, ErrAnonymous
	}
	return Identity{UserID: c.UserID, Email: c.Email}, nil
}

// seal encrypts payload with AES-256-GCM and encodes nonce||ciphertext.
func (m *Manager) seal(payload []byte) (string, error) {
	block, errBlock := aes.NewCipher(m.sealKey)
	if errBlock != nil {
		return "", fmt.Errorf("session: new cipher: %w", errBlock)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return "", fmt.Errorf("session: new gcm: %w", errGCM)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, errRead := rand.Read(nonce); errRead != nil {
		return "", fmt.Errorf("session: generate nonce: %w", errRead)
	}
	sealed := aead.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// open reverses seal.
func (m *Manager) open(value string) ([]byte, error) {
	sealed, errDecode := base64.RawURLEncoding.DecodeString(value)
	if errDecode != nil {
		return nil, errDecode
	}
	block, errBlock := aes.NewCipher(m.sealKey)
	if errBlock != nil {
		return nil, errBlock
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return nil, errGCM
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("session: value too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// Write sets the session cookie for the identity on the response.
func (m *Manager) Write(c *gin.Context, id Identity) error {
	value, errIssue := m.Issue(id)
	if errIssue != nil {
		return errIssue
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, int(m.duration.Seconds()), "/", "", m.secure, true)
	return nil
}

// Clear removes the session cookie.
func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}

// FromRequest resolves the identity on an inbound request.
func (m *Manager) FromRequest(c *gin.Context) (Identity, error) {
	value, errCookie := c.Cookie(CookieName)
	if errCookie != nil || strings.TrimSpace(value) == "" {
		return Identity{}, ErrAnonymous
	}
	return m.Resolve(value)
}
