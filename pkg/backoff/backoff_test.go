package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Wait(t *testing.T) {
	t.Run("retries", func(t *testing.T) {
		b := New(3, time.Millisecond, time.Millisecond*4)

		assert.True(t, b.Wait(context.Background()))
		assert.True(t, b.Wait(context.Background()))
		assert.True(t, b.Wait(context.Background()))
		assert.False(t, b.Wait(context.Background()))
	})

	t.Run("max backoff", func(t *testing.T) {
		b := New(0, time.Millisecond, time.Millisecond*4)

		for i := 0; i != 5; i++ {
			assert.True(t, b.Wait(context.Background()))
		}
		// Includes 10% jitter.
		assert.LessOrEqual(t, b.lastBackoff, time.Microsecond*4400)
		assert.GreaterOrEqual(t, b.lastBackoff, time.Millisecond*4)
	})

	t.Run("cancelled", func(t *testing.T) {
		b := New(0, time.Minute, time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, b.Wait(ctx))
	})
}
