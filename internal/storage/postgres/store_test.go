package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/spigell/vkinder/internal/profile"
	"github.com/spigell/vkinder/internal/storage/storagetest"
)

const testDSNEnv = "VKINDER_TEST_POSTGRES_DSN"

func TestStore(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}

	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		ctx := context.Background()
		pool, err := NewPool(ctx, dsn)
		if err != nil {
			t.Fatalf("new pool: %v", err)
		}
		t.Cleanup(pool.Close)

		if err := Migrate(ctx, pool); err != nil {
			t.Fatalf("migrate: %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE favorites, candidate_photos, candidates, users, blacklist RESTART IDENTITY`); err != nil {
			t.Fatalf("truncate: %v", err)
		}

		return NewStore(pool)
	})
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, err := NewPool(context.Background(), "postgres://%zz"); err == nil {
		t.Fatalf("expected error for malformed dsn")
	}
}

func TestWithTxNilPool(t *testing.T) {
	if err := WithTx(context.Background(), nil, nil); err == nil {
		t.Fatalf("expected error for nil pool")
	}
}

func TestValidationBeforeQuery(t *testing.T) {
	s := NewStore(nil)
	ctx := context.Background()

	if err := s.SaveUser(ctx, profile.User{}); err == nil {
		t.Fatalf("expected invalid user to be rejected")
	}
	if err := s.SaveCandidate(ctx, profile.Candidate{}, nil); err == nil {
		t.Fatalf("expected invalid candidate to be rejected")
	}
	if _, err := s.AddFavorite(ctx, 0, 1); err == nil {
		t.Fatalf("expected invalid favorite to be rejected")
	}
	if err := s.AddToBlacklist(ctx, 1, 0); err == nil {
		t.Fatalf("expected invalid blacklist entry to be rejected")
	}
}
