package throttle

import (
	"testing"
	"time"
)

func TestStore_BurstThenDeny(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(1, 2, WithNow(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		if ok, _ := s.Allow("10.0.0.1"); !ok {
			t.Fatalf("call %d: expected allowed within burst", i)
		}
	}
	ok, retry := s.Allow("10.0.0.1")
	if ok {
		t.Fatalf("expected denial after burst")
	}
	if retry <= 0 || retry > time.Second {
		t.Fatalf("unexpected retry delay %s", retry)
	}

	now = now.Add(time.Second)
	if ok, _ := s.Allow("10.0.0.1"); !ok {
		t.Fatalf("expected a token after one second")
	}
}

func TestStore_DenialDoesNotConsumeToken(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(1, 1, WithNow(func() time.Time { return now }))

	_, _ = s.Allow("k")
	for i := 0; i < 5; i++ {
		_, _ = s.Allow("k")
	}
	now = now.Add(time.Second)
	if ok, _ := s.Allow("k"); !ok {
		t.Fatalf("denied calls must not borrow future tokens")
	}
}

func TestStore_KeysAreIndependent(t *testing.T) {
	s := NewStore(0.01, 1)
	if ok, _ := s.Allow("a"); !ok {
		t.Fatalf("expected a allowed")
	}
	if ok, _ := s.Allow("b"); !ok {
		t.Fatalf("expected b allowed")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewStore(10, 1, WithIdleTTL(time.Minute), WithCleanupEvery(0), WithNow(func() time.Time { return now }))

	_, _ = s.Allow("old")
	now = now.Add(2 * time.Minute)
	_, _ = s.Allow("fresh")

	if n := s.Cleanup(); n != 1 {
		t.Fatalf("expected 1 removed, got %d", n)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", s.Len())
	}
}
