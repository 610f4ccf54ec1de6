package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestContextConcurrentAccess tests that context values can be safely accessed concurrently.
func TestContextConcurrentAccess(t *testing.T) {
	ctx := withAnalysisID(withSuppressHeader(context.Background()), 12345)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			analysisID, ok := getAnalysisID(ctx)
			assert.True(t, shouldSuppressHeader(ctx), "goroutine %d", i)
			assert.True(t, ok, "goroutine %d", i)
			assert.Equal(t, int64(12345), analysisID, "goroutine %d", i)
		})
	}
	wg.Wait()
}

// TestContextIsolation tests that different contexts maintain isolation.
func TestContextIsolation(t *testing.T) {
	base := context.Background()
	ctx1 := withAnalysisID(base, 1)
	ctx2 := withSuppressHeader(base)

	id1, ok1 := getAnalysisID(ctx1)
	assert.True(t, ok1)
	assert.Equal(t, int64(1), id1)
	assert.False(t, shouldSuppressHeader(ctx1))

	id2, ok2 := getAnalysisID(ctx2)
	assert.False(t, ok2)
	assert.Zero(t, id2)
	assert.True(t, shouldSuppressHeader(ctx2))
}
