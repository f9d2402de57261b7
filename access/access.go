// Package access implements the ephemeral capability tokens that gate file
// fetches, viewer pages and uploads. A token is an unguessable string bound
// to a single HubSpot file id; whoever holds it may act on that file until
// the token expires, without re-deriving CRM credentials in the browser.
//
// The store is process-wide, in-memory state. Tokens do not survive a
// restart, are never shared between instances, and cannot be revoked early;
// all of that is deliberate.
package access

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// TokenTTL is how long a minted token stays valid. It is fixed; callers
// cannot ask for a longer or shorter lease.
const TokenTTL = 15 * time.Minute

// tokenBytes of randomness per token, hex encoded to twice as many
// characters on the wire.
const tokenBytes = 32

// placeholderFilename is used when the caller did not supply a display name.
const placeholderFilename = "document.pdf"

var (
	// ErrMissingToken is returned when no token was presented at all.
	ErrMissingToken = errors.New("access: no token presented")
	// ErrNotFound is returned when the presented token was never issued or
	// has already been removed.
	ErrNotFound = errors.New("access: token not found")
	// ErrExpired is returned when the token exists but its lease is over.
	// The record is removed before the error is returned.
	ErrExpired = errors.New("access: token expired")
	// ErrMismatch is returned when the token is live but bound to a
	// different file than the one the caller is acting on. The record is
	// left intact.
	ErrMismatch = errors.New("access: token bound to a different file")
)

// Token is a single capability record. Validate and ValidateAny return
// copies, so holders cannot reach into the store's state.
type Token struct {
	// Value is the opaque token string itself. Never log it.
	Value string
	// HubID names the portal whose credentials the relays use when acting
	// on the file. Validation does not consult it.
	HubID int64
	// FileID is the HubSpot file this token grants access to.
	FileID string
	// Filename is a display name carried for UI labelling only. It is not
	// authoritative; the file's real name lives in HubSpot.
	Filename string
	// ExpiresAt is the instant the token stops being valid.
	ExpiresAt time.Time
	// Used is carried on the record but nothing sets or consults it:
	// tokens stay multi-use until expiry, because one viewer session
	// presents the same capability several times (page, content, save).
	Used bool
}

// Store holds the live tokens. All operations are single-key map accesses
// guarded by one mutex; nothing blocks waiting on another token.
type Store struct {
	mu     sync.Mutex
	tokens map[string]*Token

	ttl time.Duration
	now func() time.Time
}

// NewStore returns an empty store. Construct one per process and hand it to
// the request handlers by reference.
func NewStore() *Store {
	return &Store{
		tokens: make(map[string]*Token),
		ttl:    TokenTTL,
		now:    time.Now,
	}
}

// Mint issues a new token bound to fileID in the given hub, valid for
// TokenTTL. filename is optional and only used for labelling. fileID must be
// non-empty; handlers reject empty file ids before reaching the store.
//
// Minting has no error path. Each mint schedules a deferred deletion that
// fires at expiry; the deferred delete, the lazy delete in Validate and
// Sweep all tolerate the record being gone already.
func (s *Store) Mint(hubID int64, fileID, filename string) string {
	if filename == "" {
		filename = placeholderFilename
	}
	value := newToken()
	s.mu.Lock()
	s.tokens[value] = &Token{
		Value:     value,
		HubID:     hubID,
		FileID:    fileID,
		Filename:  filename,
		ExpiresAt: s.now().Add(s.ttl),
	}
	s.mu.Unlock()
	time.AfterFunc(s.ttl, func() { s.remove(value) })
	return value
}

// Validate checks that value names a live token bound to expectedFileID and
// returns a copy of the record. It never extends a token's lease. The only
// mutation it performs is removing a record it observes to be expired.
//
// Callers must treat every failure identically (respond unauthorized); the
// distinct errors exist for logs and metrics, not for the client.
func (s *Store) Validate(value, expectedFileID string) (Token, error) {
	if value == "" {
		return Token{}, ErrMissingToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[value]
	if !ok {
		return Token{}, ErrNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.tokens, value)
		return Token{}, ErrExpired
	}
	if rec.FileID != expectedFileID {
		return Token{}, ErrMismatch
	}
	return *rec, nil
}

// ValidateAny checks that value names a live token without checking which
// file it is bound to. The upload path uses this: an edited document may be
// saved as a brand-new file that had no id when the token was minted, so
// there is nothing to bind against. That makes uploads a weaker check than
// reads; keep this method off any path that has a concrete file id.
func (s *Store) ValidateAny(value string) (Token, error) {
	if value == "" {
		return Token{}, ErrMissingToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[value]
	if !ok {
		return Token{}, ErrNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		delete(s.tokens, value)
		return Token{}, ErrExpired
	}
	return *rec, nil
}

// Sweep removes every expired record and reports how many were removed.
// The deferred per-token deletions make sweeping redundant in the common
// case; a low-frequency sweep mops up after delayed timers or clock drift.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for value, rec := range s.tokens {
		if !now.Before(rec.ExpiresAt) {
			delete(s.tokens, value)
			removed++
		}
	}
	return removed
}

// Len reports the number of live records, expired-but-unswept ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// remove deletes the record for value if it is still present.
func (s *Store) remove(value string) {
	s.mu.Lock()
	delete(s.tokens, value)
	s.mu.Unlock()
}

// newToken returns tokenBytes of system randomness, hex encoded. A broken
// random source means the process cannot safely mint capabilities at all,
// so it panics rather than returning an error nothing can handle.
func newToken() string {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
