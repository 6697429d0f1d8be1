// Package oauthstate holds the transient state of an in-flight OAuth
// authorization: the PKCE code verifier and the CSRF state token. Sessions
// are short-lived and single-use: Consume invalidates the session whether or
// not the state matched.
package oauthstate

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
)

// TTL is how long an initiated authorization stays valid.
const TTL = 10 * time.Minute

var (
	// ErrNotFound means no pending session exists (expired, already
	// consumed, or never created).
	ErrNotFound = errors.New("oauthstate: session not found")
	// ErrStateMismatch means a session exists but its CSRF state does not
	// match the callback's.
	ErrStateMismatch = errors.New("oauthstate: state mismatch")
)

// Session is one pending authorization flow.
type Session struct {
	Provider     string
	State        string
	CodeVerifier string
	RedirectURI  string
	CreatedAt    time.Time
}

// Store persists pending sessions between the initiate redirect and the
// provider callback. A signed cookie is the default backing; an in-process
// cache serves deployments that cannot round-trip cookies.
type Store interface {
	// Save records a new pending session on the outgoing response.
	Save(c *gin.Context, sess *Session) error

	// Consume retrieves the pending session and invalidates it. It returns
	// ErrNotFound if no live session exists and ErrStateMismatch if the
	// supplied state does not equal the stored one; in both cases the
	// session is gone afterwards.
	Consume(c *gin.Context, state string) (*Session, error)
}
