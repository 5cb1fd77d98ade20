package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInArray(t *testing.T) {
	list := []string{"ipfs.io", "gateway.pinata.cloud"}
	assert.True(t, InArray("ipfs.io", list))
	assert.False(t, InArray("IPFS.IO", list))
	assert.True(t, InArrayFold("IPFS.IO", list))
	assert.False(t, InArrayFold("example.com", list))
	assert.False(t, InArray("ipfs.io", nil))
}

func TestGoWithRecover(t *testing.T) {
	recovered := make(chan interface{}, 1)
	GoWithRecover(func() {
		panic("boom")
	}, func(r interface{}) {
		recovered <- r
	})

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("recover handler was not called")
	}
}
