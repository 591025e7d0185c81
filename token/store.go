package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/moaaz-s/authcore/kv"
)

const pairKey = "token_pair"

// DefaultExpiryBuffer is subtracted from a token's remaining lifetime
// so a token never expires mid-operation.
const DefaultExpiryBuffer = 300 * time.Second

var (
	// ErrNoTokens is returned when no token pair is stored.
	ErrNoTokens = errors.New("no tokens stored")
	// ErrEmptyToken is returned when SetTokens receives an empty half.
	ErrEmptyToken = errors.New("token pair must not contain empty tokens")
	// ErrRefreshFailed is returned when the refresh exchange fails. The
	// pair is cleared; re-authentication is required.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrNoIssuer is returned when a refresh is attempted without an
	// issuance collaborator.
	ErrNoIssuer = errors.New("token issuer not configured")
)

// Pair is a persisted access/refresh token pair. The refresh token is
// opaque and single-use.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Issuer is the server collaborator that mints token pairs.
type Issuer interface {
	Acquire(ctx context.Context, phone, email string) (Pair, error)
	Refresh(ctx context.Context, refreshToken string) (Pair, error)
	Logout(ctx context.Context) error
}

// Store persists the token pair and answers validity questions about
// the access token. Refresh and dual writes are serialized behind a
// mutex; a pair is never partially stored.
type Store struct {
	store  kv.Store
	issuer Issuer
	buffer time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a token Store. buffer <= 0 selects
// [DefaultExpiryBuffer]. issuer may be nil when refresh is not needed.
func NewStore(store kv.Store, issuer Issuer, buffer time.Duration) (*Store, error) {
	if store == nil {
		return nil, errors.New("token store requires a kv store")
	}
	if buffer <= 0 {
		buffer = DefaultExpiryBuffer
	}

	return &Store{
		store:  store,
		issuer: issuer,
		buffer: buffer,
		now:    time.Now,
	}, nil
}

// AuthToken returns the persisted access token, or [ErrNoTokens].
func (s *Store) AuthToken(ctx context.Context) (string, error) {
	pair, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// RefreshTokenValue returns the persisted refresh token, or [ErrNoTokens].
func (s *Store) RefreshTokenValue(ctx context.Context) (string, error) {
	pair, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	return pair.RefreshToken, nil
}

// SetTokens atomically stores a new pair. Either both halves are
// persisted or neither is.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(ctx, Pair{AccessToken: access, RefreshToken: refresh})
}

// ClearTokens removes the stored pair.
func (s *Store) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.RemoveItem(ctx, pairKey)
}

// Valid reports whether tok decodes and has an expiry comfortably in
// the future. Any decode error is treated as invalid.
func (s *Store) Valid(tok string) bool {
	if tok == "" {
		return false
	}
	return !Expired(tok, s.buffer, s.now())
}

// Authenticated reports whether the stored access token is currently
// valid. Missing or corrupted state reads as unauthenticated.
func (s *Store) Authenticated(ctx context.Context) bool {
	pair, err := s.load(ctx)
	if err != nil {
		return false
	}
	return s.Valid(pair.AccessToken)
}

// Acquire exchanges verified phone and email for a fresh pair via the
// issuance collaborator and stores it.
func (s *Store) Acquire(ctx context.Context, phone, email string) error {
	if s.issuer == nil {
		return ErrNoIssuer
	}

	pair, err := s.issuer.Acquire(ctx, phone, email)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, pair)
}

// Refresh exchanges the current refresh token for a brand-new pair.
// Success atomically replaces both tokens; failure clears both. There
// is no implicit retry at this layer.
func (s *Store) Refresh(ctx context.Context) error {
	if s.issuer == nil {
		return ErrNoIssuer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pair, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	next, err := s.issuer.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		_ = s.store.RemoveItem(ctx, pairKey)
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	if err := s.save(ctx, next); err != nil {
		return err
	}
	return nil
}

// InitAndValidate ensures a valid access token: valid as-is, or after
// exactly one refresh attempt. No retry loop.
func (s *Store) InitAndValidate(ctx context.Context) error {
	if s.Authenticated(ctx) {
		return nil
	}
	if _, err := s.load(ctx); err != nil {
		return err
	}
	if err := s.Refresh(ctx); err != nil {
		return err
	}
	if !s.Authenticated(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
		_ = s.store.RemoveItem(ctx, pairKey)
		return ErrRefreshFailed
	}
	return nil
}

// load fails closed: a corrupted persisted pair reads as absent.
func (s *Store) load(ctx context.Context) (Pair, error) {
	raw, err := s.store.GetItem(ctx, pairKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Pair{}, ErrNoTokens
		}
		return Pair{}, err
	}

	var pair Pair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return Pair{}, ErrNoTokens
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return Pair{}, ErrNoTokens
	}
	return pair, nil
}

func (s *Store) save(ctx context.Context, pair Pair) error {
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrEmptyToken
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return err
	}
	return s.store.SetItem(ctx, pairKey, string(data))
}
