package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/spigell/vkinder/internal/profile"
)

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, client
}

// stores returns every Store implementation under test.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	_, client := newMiniRedisClient(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, time.Hour),
	}
}

func candidates(ids ...int64) []profile.Candidate {
	out := make([]profile.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, profile.Candidate{ID: id, FirstName: "c", Age: profile.Age(20 + int(id))})
	}
	return out
}

func TestNoSession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBrowser(store)
			ctx := context.Background()

			for _, op := range []func(context.Context, int64) (Result, error){b.Current, b.Next} {
				res, err := op(ctx, 42)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.State != StateNoSession {
					t.Fatalf("expected no session, got %s", res.State)
				}
			}

			res, err := b.SkipBlacklisted(ctx, 42, profile.NewIDSet(1))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.State != StateNoSession {
				t.Fatalf("expected no session, got %s", res.State)
			}
		})
	}
}

func TestNextSaturatesAtLength(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBrowser(store)
			ctx := context.Background()

			res, err := b.Find(ctx, 1, candidates(10, 11))
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if res.State != StateActive || res.Cursor != 0 || res.Candidate.ID != 10 {
				t.Fatalf("unexpected find result: %+v", res)
			}

			expected := []struct {
				cursor int
				state  State
				id     int64
			}{
				{cursor: 1, state: StateActive, id: 11},
				{cursor: 2, state: StateExhausted},
				{cursor: 2, state: StateExhausted},
			}

			for i, exp := range expected {
				res, err := b.Next(ctx, 1)
				if err != nil {
					t.Fatalf("next %d: %v", i, err)
				}
				if res.Cursor != exp.cursor || res.State != exp.state {
					t.Fatalf("next %d: expected cursor %d state %s, got %d %s", i, exp.cursor, exp.state, res.Cursor, res.State)
				}
				if exp.state == StateActive && res.Candidate.ID != exp.id {
					t.Fatalf("next %d: expected candidate %d, got %d", i, exp.id, res.Candidate.ID)
				}
			}

			cur, err := b.Current(ctx, 1)
			if err != nil {
				t.Fatalf("current: %v", err)
			}
			if cur.State != StateExhausted || cur.Cursor != 2 {
				t.Fatalf("expected exhausted at 2, got %+v", cur)
			}
		})
	}
}

func TestFindOverwritesPreviousSession(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBrowser(store)
			ctx := context.Background()

			if _, err := b.Find(ctx, 1, candidates(1, 2, 3)); err != nil {
				t.Fatalf("find: %v", err)
			}
			if _, err := b.Next(ctx, 1); err != nil {
				t.Fatalf("next: %v", err)
			}

			res, err := b.Find(ctx, 1, candidates(7))
			if err != nil {
				t.Fatalf("find: %v", err)
			}
			if res.Cursor != 0 || res.Total != 1 || res.Candidate.ID != 7 {
				t.Fatalf("expected fresh session, got %+v", res)
			}

			cur, err := b.Current(ctx, 1)
			if err != nil {
				t.Fatalf("current: %v", err)
			}
			if cur.Candidate.ID != 7 || cur.Candidate.Age == nil || *cur.Candidate.Age != 27 {
				t.Fatalf("candidate fields were not preserved: %+v", cur.Candidate)
			}
		})
	}
}

func TestSkipBlacklisted(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBrowser(store)
			ctx := context.Background()

			if _, err := b.Find(ctx, 1, candidates(1, 2, 3, 4)); err != nil {
				t.Fatalf("find: %v", err)
			}

			res, err := b.SkipBlacklisted(ctx, 1, profile.NewIDSet(1, 2))
			if err != nil {
				t.Fatalf("skip: %v", err)
			}
			if res.State != StateActive || res.Candidate.ID != 3 || res.Cursor != 2 {
				t.Fatalf("expected candidate 3 at cursor 2, got %+v", res)
			}

			res, err = b.SkipBlacklisted(ctx, 1, nil)
			if err != nil {
				t.Fatalf("skip: %v", err)
			}
			if res.Candidate.ID != 3 {
				t.Fatalf("skip with empty blacklist must not move the cursor, got %+v", res)
			}
		})
	}
}

func TestSkipBlacklistedAllRemainingTerminates(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBrowser(store)
			ctx := context.Background()

			ids := make([]int64, 0, 500)
			blacklist := profile.NewIDSet()
			for i := int64(1); i <= 500; i++ {
				ids = append(ids, i)
				blacklist.Add(i)
			}

			if _, err := b.Find(ctx, 1, candidates(ids...)); err != nil {
				t.Fatalf("find: %v", err)
			}

			res, err := b.SkipBlacklisted(ctx, 1, blacklist)
			if err != nil {
				t.Fatalf("skip: %v", err)
			}
			if res.State != StateExhausted || res.Cursor != 500 {
				t.Fatalf("expected exhausted at 500, got %+v", res)
			}
		})
	}
}

func TestConcurrentAdvanceNeverOvershoots(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Put(ctx, Session{UserID: 5, Candidates: candidates(1, 2, 3)}); err != nil {
				t.Fatalf("put: %v", err)
			}

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _, _ = store.Advance(ctx, 5)
				}()
			}
			wg.Wait()

			s, ok, err := store.Get(ctx, 5)
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if s.Cursor != 3 {
				t.Fatalf("expected cursor saturated at 3, got %d", s.Cursor)
			}
		})
	}
}

func TestPutNormalizesCursor(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := store.Put(ctx, Session{UserID: 9, Candidates: candidates(1), Cursor: 10}); err != nil {
				t.Fatalf("put: %v", err)
			}
			s, _, err := store.Get(ctx, 9)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if s.Cursor != 1 {
				t.Fatalf("expected cursor clamped to 1, got %d", s.Cursor)
			}
		})
	}
}

func TestRedisSessionExpires(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, Session{UserID: 3, Candidates: candidates(1)}); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected session to expire")
	}
}

func TestMemoryStoreDoesNotShareCandidates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	list := candidates(1, 2)
	if err := store.Put(ctx, Session{UserID: 1, Candidates: list}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list[0].ID = 99

	s, _, _ := store.Get(ctx, 1)
	if s.Candidates[0].ID != 1 {
		t.Fatalf("stored session must not alias the caller's slice")
	}
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, int64) (Session, bool, error) {
	return Session{}, false, f.err
}

func (f failingStore) Put(context.Context, Session) error { return f.err }

func (f failingStore) Advance(context.Context, int64) (Session, bool, error) {
	return Session{}, false, f.err
}

func TestBrowserWrapsStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	b := NewBrowser(failingStore{err: boom})
	ctx := context.Background()

	if _, err := b.Find(ctx, 1, candidates(1)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error from find, got %v", err)
	}
	if _, err := b.Current(ctx, 1); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error from current, got %v", err)
	}
	if _, err := b.Next(ctx, 1); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error from next, got %v", err)
	}
}
