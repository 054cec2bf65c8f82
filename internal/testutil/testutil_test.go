package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idemcheck/internal/shell"
)

func TestDeterministicClock_Advances(t *testing.T) {
	clock := NewDeterministicClock(time.Second)

	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, Epoch, clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock(time.Millisecond)

	var wg sync.WaitGroup
	seen := make(chan time.Time, 1000)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[time.Time]bool)
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 1000, "every call should return a distinct instant")
}

func TestFixedIDGenerator_InOrder(t *testing.T) {
	gen := NewFixedIDGenerator("run-1", "run-2")

	assert.Equal(t, "run-1", gen.Generate())
	assert.Equal(t, "run-2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestScriptedRunner_QueueAndRepeat(t *testing.T) {
	r := NewScriptedRunner().Outputs("checksum", "a", "b")
	ctx := context.Background()

	res, err := r.Run(ctx, "checksum")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Stdout)

	res, err = r.Run(ctx, "checksum")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Stdout)

	res, err = r.Run(ctx, "checksum")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Stdout, "last response repeats")

	assert.Equal(t, 3, r.Count("checksum"))
}

func TestScriptedRunner_UnscriptedSucceeds(t *testing.T) {
	r := NewScriptedRunner()

	res, err := r.Run(context.Background(), "apply", "A=1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []Call{{Line: "apply", Env: []string{"A=1"}}}, r.Calls())
	assert.Equal(t, []string{"apply"}, r.Lines())
}

func TestScriptedRunner_Failure(t *testing.T) {
	r := NewScriptedRunner().On("apply", Response{Stderr: "boom", ExitCode: 2})

	res, err := r.Run(context.Background(), "apply")
	require.Error(t, err)
	assert.Equal(t, 2, res.ExitCode)

	var cmdErr *shell.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, shell.KindExit, cmdErr.Kind)
	assert.Equal(t, "boom", cmdErr.Diagnostic())
}

func TestScriptedRunner_CanceledContext(t *testing.T) {
	r := NewScriptedRunner()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "apply")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
