package exchange

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreKeepsOnlyLast(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	if _, err := s.Last(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Last() on empty store error = %v, want ErrNotFound", err)
	}

	if err := s.Save(ctx, Exchange{Transcript: "first", Reply: "one"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, Exchange{Transcript: "second", Reply: "two", AudioURL: "/responses/a.mp3"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Last(ctx)
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if got.Transcript != "second" || got.Reply != "two" {
		t.Fatalf("Last() = %+v, want second exchange", got)
	}
	if got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("Save() should stamp ID and CreatedAt: %+v", got)
	}
}

func TestNewStoreDefaultsToMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "", " ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if s.Mode() != "in-memory" {
		t.Fatalf("Mode() = %q, want in-memory", s.Mode())
	}
}

func TestExchangeResult(t *testing.T) {
	e := Exchange{Transcript: "hello", Reply: "hi there"}
	r := e.Result()
	if r.UserText != "hello" || r.BotText != "hi there" || r.AudioURL != "" {
		t.Fatalf("Result() = %+v", r)
	}
	if (Exchange{}).IsZero() != true {
		t.Fatalf("zero Exchange should report IsZero")
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "http://not-redis"); err == nil {
		t.Fatalf("NewRedisStore() expected error for non-redis scheme")
	}
}
