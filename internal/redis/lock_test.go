package redisclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestLocker(t *testing.T) (*miniredis.Miniredis, Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisPractitionerLocker(client, 5*time.Second)
}

func TestWithPractitionerLockRunsCriticalSection(t *testing.T) {
	_, locker := newTestLocker(t)

	ran := false
	err := locker.WithPractitionerLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithPractitionerLock: %v", err)
	}
	if !ran {
		t.Fatal("critical section did not run")
	}
}

func TestWithPractitionerLockContention(t *testing.T) {
	mr, locker := newTestLocker(t)

	practitionerID := uuid.New()
	key := fmt.Sprintf("lock:practitioner:%s", practitionerID)
	if err := mr.Set(key, "someone-else"); err != nil {
		t.Fatalf("seed lock key: %v", err)
	}

	err := locker.WithPractitionerLock(context.Background(), practitionerID, func(ctx context.Context) error {
		t.Fatal("critical section must not run while lock is held")
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("err = %v, want ErrLockNotAcquired", err)
	}
}

func TestWithPractitionerLockReleasesAfterRun(t *testing.T) {
	mr, locker := newTestLocker(t)

	practitionerID := uuid.New()
	if err := locker.WithPractitionerLock(context.Background(), practitionerID, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	key := fmt.Sprintf("lock:practitioner:%s", practitionerID)
	if mr.Exists(key) {
		t.Fatal("lock key still present after critical section")
	}

	// A second acquire on the same practitioner must succeed.
	if err := locker.WithPractitionerLock(context.Background(), practitionerID, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("second acquire: %v", err)
	}
}

func TestWithPractitionerLockDistinctPractitionersDoNotContend(t *testing.T) {
	_, locker := newTestLocker(t)

	err := locker.WithPractitionerLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return locker.WithPractitionerLock(ctx, uuid.New(), func(ctx context.Context) error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("nested locks for distinct practitioners: %v", err)
	}
}

func TestWithPractitionerLockPropagatesError(t *testing.T) {
	_, locker := newTestLocker(t)

	sentinel := errors.New("boom")
	err := locker.WithPractitionerLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
}
