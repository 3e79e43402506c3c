package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
	"github.com/faqbridge/faqbridge-backend/internal/platform/rediskv"
)

type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return nil, rediskv.ErrNotFound
	}
	return raw, nil
}

func (f *fakeKV) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeKV) Scan(ctx context.Context, pattern string, limit int) ([]string, error) {
	return nil, nil
}
func (f *fakeKV) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }
func (f *fakeKV) Ping(ctx context.Context) error                                  { return nil }

func TestGetOrCreateLazyCreate(t *testing.T) {
	store := NewStore(logger.NewNop(), newFakeKV(), time.Hour)
	sess, err := store.GetOrCreate(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if sess.SessionID == "" || sess.UserID != "user-1" {
		t.Fatalf("session: %+v", sess)
	}
	if sess.DialogState != "INITIAL" {
		t.Fatalf("dialog state: got=%q", sess.DialogState)
	}
}

func TestSaveMaintainsPointerAndTTL(t *testing.T) {
	kv := newFakeKV()
	store := NewStore(logger.NewNop(), kv, time.Hour)
	ctx := context.Background()

	sess, _ := store.GetOrCreate(ctx, "user-1", "")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if got := string(kv.data["user:active_session:user-1"]); got != sess.SessionID {
		t.Fatalf("pointer: want=%q got=%q", sess.SessionID, got)
	}
	if kv.ttls["session:"+sess.SessionID] != time.Hour {
		t.Fatalf("session ttl: got=%v", kv.ttls["session:"+sess.SessionID])
	}
	if kv.ttls["user:active_session:user-1"] != time.Hour {
		t.Fatalf("pointer ttl: got=%v", kv.ttls["user:active_session:user-1"])
	}

	// A pointer-only follow-up resolves to the same session.
	again, err := store.GetOrCreate(ctx, "user-1", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.SessionID != sess.SessionID {
		t.Fatalf("pointer follow: want=%q got=%q", sess.SessionID, again.SessionID)
	}
}

func TestAppendMessageCapsRecentHistory(t *testing.T) {
	sess := &UserSession{}
	for i := 0; i < 60; i++ {
		sess.AppendMessage(Message{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	if len(sess.RecentMessages) != 50 {
		t.Fatalf("cap: want=50 got=%d", len(sess.RecentMessages))
	}
	if sess.MessageCount != 60 {
		t.Fatalf("count: want=60 got=%d", sess.MessageCount)
	}
	if sess.RecentMessages[0].Content != "m10" {
		t.Fatalf("oldest kept: got=%q", sess.RecentMessages[0].Content)
	}
}

func TestRecentUserMessagesNewestFirst(t *testing.T) {
	sess := &UserSession{}
	sess.AppendMessage(Message{Role: "user", Content: "first"})
	sess.AppendMessage(Message{Role: "assistant", Content: "answer"})
	sess.AppendMessage(Message{Role: "user", Content: "second"})

	got := sess.RecentUserMessages(4)
	if len(got) != 2 || got[0].Content != "second" || got[1].Content != "first" {
		t.Fatalf("recent: got=%+v", got)
	}
}

func TestGetMissingSessionReturnsNil(t *testing.T) {
	store := NewStore(logger.NewNop(), newFakeKV(), time.Hour)
	sess, err := store.Get(context.Background(), "ghost")
	if err != nil || sess != nil {
		t.Fatalf("want nil, nil; got %+v, %v", sess, err)
	}
	if errors.Is(err, rediskv.ErrNotFound) {
		t.Fatalf("ErrNotFound should not escape the store")
	}
}
