package util

import (
	"github.com/stretchr/testify/assert"
	"sync"
	"testing"
)

func TestOpsCounter(t *testing.T) {
	var c OpsCounter
	assert.Zero(t, c.Load())

	c.Inc()
	c.Add(0)
	c.Add(4)
	assert.Equal(t, uint64(5), c.Load())
}

func TestOpsCounter_Concurrent(t *testing.T) {
	var c OpsCounter
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(16*1000), c.Load())
}
