package utils_test

import (
	"sync/atomic"
	"testing"

	"github.com/benmeehan/location-reporter/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsAllTasks(t *testing.T) {
	pool := utils.NewWorkerPool(3, 10, zerolog.Nop())

	var count atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(func() { count.Add(1) }))
	}
	pool.Shutdown()

	assert.Equal(t, int32(20), count.Load())
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	pool := utils.NewWorkerPool(1, 1, zerolog.Nop())

	var ran atomic.Bool
	require.NoError(t, pool.Submit(func() { panic("boom") }))
	require.NoError(t, pool.Submit(func() { ran.Store(true) }))
	pool.Shutdown()

	assert.True(t, ran.Load())
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := utils.NewWorkerPool(1, 0, zerolog.Nop())
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), utils.ErrPoolClosed)
}
