package coalesce_test

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cachecore/internal/coalesce"
)

func TestDo_SingleCallerIsLeader(t *testing.T) {
	g := coalesce.NewGroup()

	encoded, native, leader, err := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
		return 42, []byte("42"), nil
	})
	require.NoError(t, err)
	require.True(t, leader)
	require.Equal(t, 42, native)
	require.Equal(t, []byte("42"), encoded)
}

func TestDo_ConcurrentCallersShareOneExecution(t *testing.T) {
	g := coalesce.NewGroup()

	const n = 1000
	var calls atomic.Int64

	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			encoded, _, _, err := g.Do(context.Background(), "shared", func(context.Context) (any, []byte, error) {
				n := calls.Add(1)
				time.Sleep(50 * time.Millisecond)
				return n, []byte(strconv.FormatInt(n, 10)), nil
			})
			results[i] = encoded
			errs[i] = err
		}(i)
	}
	wg.Wait()

	require.Equal(t, int64(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0], results[i])
	}
}

func TestDo_DifferentKeysRunIndependently(t *testing.T) {
	g := coalesce.NewGroup()

	var wg sync.WaitGroup
	var calls atomic.Int64
	wg.Add(2)
	for _, key := range []string{"a", "b"} {
		key := key
		go func() {
			defer wg.Done()
			_, _, _, _ = g.Do(context.Background(), key, func(context.Context) (any, []byte, error) {
				calls.Add(1)
				return nil, nil, nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, int64(2), calls.Load())
}

func TestDo_LeaderErrorPropagatesToWaiters(t *testing.T) {
	g := coalesce.NewGroup()

	wantErr := errors.New("boom")
	release := make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 5)
	leaders := make([]bool, 5)

	wg.Add(5)
	for i := 0; i < 5; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, _, leader, err := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
				<-release
				return nil, nil, wantErr
			})
			errs[i] = err
			leaders[i] = leader
		}()
	}

	// give every goroutine a chance to enqueue before unblocking the leader
	for g.Inflight("k") == false {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	leaderCount := 0
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, errs[i], wantErr)
		if leaders[i] {
			leaderCount++
		}
	}
	require.Equal(t, 1, leaderCount)
}

func TestDo_LeaderPanicSurfacesAsErrorAndClearsInflight(t *testing.T) {
	g := coalesce.NewGroup()

	_, _, _, err := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
		panic("kaboom")
	})
	require.Error(t, err)
	require.False(t, g.Inflight("k"))

	// Must be able to start a fresh call for the same key afterwards.
	_, native, leader, err := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
		return "ok", []byte("ok"), nil
	})
	require.NoError(t, err)
	require.True(t, leader)
	require.Equal(t, "ok", native)
}

func TestDo_WaiterCancellationDoesNotCancelLeader(t *testing.T) {
	g := coalesce.NewGroup()

	started := make(chan struct{})
	finish := make(chan struct{})
	leaderDone := make(chan error, 1)

	go func() {
		_, _, _, err := g.Do(context.Background(), "k", func(ctx context.Context) (any, []byte, error) {
			close(started)
			<-finish
			return "value", []byte("value"), ctx.Err()
		})
		leaderDone <- err
	}()

	<-started

	waiterCtx, cancel := context.WithCancel(context.Background())
	waiterErr := make(chan error, 1)
	go func() {
		_, _, leader, err := g.Do(waiterCtx, "k", func(context.Context) (any, []byte, error) {
			t.Error("waiter must not become leader")
			return nil, nil, nil
		})
		require.False(t, leader)
		waiterErr <- err
	}()

	cancel()
	require.ErrorIs(t, <-waiterErr, context.Canceled)

	// leader is unaffected by the waiter's cancellation
	close(finish)
	require.NoError(t, <-leaderDone)
}

func TestDo_LateSubscriberAfterCompletionDoesNotBlock(t *testing.T) {
	g := coalesce.NewGroup()
	done := make(chan struct{})

	go func() {
		_, _, _, _ = g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
			return "v", []byte("v"), nil
		})
		close(done)
	}()
	<-done

	// By now the leader has already removed the inflight entry and closed
	// done; a "late" Do for the same key must start a brand new call rather
	// than hang waiting on a stale completion.
	called := false
	_, _, leader, err := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
		called = true
		return "v2", []byte("v2"), nil
	})
	require.NoError(t, err)
	require.True(t, leader)
	require.True(t, called)
}

func ExampleGroup_Do() {
	g := coalesce.NewGroup()
	_, native, _, _ := g.Do(context.Background(), "k", func(context.Context) (any, []byte, error) {
		return 7, []byte("7"), nil
	})
	fmt.Println(native)
	// Output: 7
}
