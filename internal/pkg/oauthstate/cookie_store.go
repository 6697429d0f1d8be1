package oauthstate

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// CookieName carries the signed pending-session payload. httpOnly and
// same-site lax so the provider redirect can send it back.
const CookieName = "oauth_session"

// CookieStore keeps the pending session in a JWT-signed httpOnly cookie on
// the user agent. Nothing is held server-side, so it works across replicas
// without shared storage.
type CookieStore struct {
	signingKey []byte
	secure     bool
}

// NewCookieStore creates a cookie-backed store signing with the given secret.
func NewCookieStore(signingSecret string, secure bool) *CookieStore {
	return &CookieStore{signingKey: []byte(signingSecret), secure: secure}
}

type sessionClaims struct {
	Provider     string `json:"prv"`
	State        string `json:"st"`
	CodeVerifier string `json:"cv"`
	RedirectURI  string `json:"ru"`
	jwt.RegisteredClaims
}

func (s *CookieStore) Save(c *gin.Context, sess *Session) error {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Provider:     sess.Provider,
		State:        sess.State,
		CodeVerifier: sess.CodeVerifier,
		RedirectURI:  sess.RedirectURI,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return fmt.Errorf("oauthstate: sign session cookie: %w", err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, signed, int(TTL.Seconds()), "/", "", s.secure, true)
	return nil
}

func (s *CookieStore) Consume(c *gin.Context, state string) (*Session, error) {
	raw, err := c.Cookie(CookieName)
	// Invalidate before validating: the session is single-use even when
	// the state check fails.
	s.clear(c)
	if err != nil || raw == "" {
		return nil, ErrNotFound
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrNotFound
	}

	if subtle.ConstantTimeCompare([]byte(state), []byte(claims.State)) != 1 {
		return nil, ErrStateMismatch
	}

	return &Session{
		Provider:     claims.Provider,
		State:        claims.State,
		CodeVerifier: claims.CodeVerifier,
		RedirectURI:  claims.RedirectURI,
		CreatedAt:    claims.IssuedAt.Time,
	}, nil
}

func (s *CookieStore) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.secure, true)
}
