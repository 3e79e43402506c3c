package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/rediskv"
)

const (
	sessionKeyPrefix = "session:"
	pointerKeyPrefix = "user:active_session:"
)

// Store persists sessions in the key/value store. Reads follow a
// read-local-mutate-save pattern; concurrent writers to one session
// are last-write-wins.
type Store struct {
	log *logger.Logger
	kv  rediskv.Store
	ttl time.Duration
}

func NewStore(log *logger.Logger, kv rediskv.Store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		log: log.With("component", "SessionStore"),
		kv:  kv,
		ttl: ttl,
	}
}

// GetOrCreate resolves the caller's session. An explicit sessionID
// wins; otherwise the active-session pointer for the user is followed;
// otherwise a fresh session is created lazily.
func (s *Store) GetOrCreate(ctx context.Context, userID, sessionID string) (*UserSession, error) {
	if sessionID != "" {
		if sess, err := s.Get(ctx, sessionID); err == nil && sess != nil {
			return sess, nil
		} else if err != nil {
			return nil, err
		}
		// Unknown id from the client: adopt it for continuity.
		return s.create(userID, sessionID), nil
	}

	if userID != "" {
		pointed, err := s.kv.Get(ctx, pointerKeyPrefix+userID)
		if err == nil {
			if sess, gerr := s.Get(ctx, string(pointed)); gerr == nil && sess != nil {
				return sess, nil
			}
		} else if !errors.Is(err, rediskv.ErrNotFound) {
			return nil, fmt.Errorf("read session pointer: %w", err)
		}
	}

	return s.create(userID, uuid.NewString()), nil
}

func (s *Store) create(userID, sessionID string) *UserSession {
	now := time.Now().UTC()
	return &UserSession{
		UserID:           userID,
		SessionID:        sessionID,
		StartTime:        now,
		LastActivityTime: now,
		DialogState:      "INITIAL",
	}
}

// Get returns (nil, nil) when the session does not exist.
func (s *Store) Get(ctx context.Context, sessionID string) (*UserSession, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, rediskv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session %q: %w", sessionID, err)
	}
	var sess UserSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.log.Warn("session record corrupt, recreating", "session_id", sessionID, "error", err)
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session and refreshes both TTLs; the user pointer is
// updated in the same call so the pair stays consistent.
func (s *Store) Save(ctx context.Context, sess *UserSession) error {
	if sess == nil || sess.SessionID == "" {
		return fmt.Errorf("session id required")
	}
	sess.LastActivityTime = time.Now().UTC()
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.SetEx(ctx, sessionKeyPrefix+sess.SessionID, raw, s.ttl); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if sess.UserID != "" {
		if err := s.kv.SetEx(ctx, pointerKeyPrefix+sess.UserID, []byte(sess.SessionID), s.ttl); err != nil {
			return fmt.Errorf("write session pointer: %w", err)
		}
	}
	return nil
}

func (s *Store) TTL() time.Duration { return s.ttl }
