package exception

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RecoversPanic(t *testing.T) {
	err := Run("boom", func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRun_PassesError(t *testing.T) {
	want := errors.New("plain")
	assert.Equal(t, want, Run("plain", func() error { return want }))
	assert.NoError(t, Run("ok", func() error { return nil }))
}

func TestSafeGo_DoesNotCrash(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	SafeGo("panicky", func() {
		defer wg.Done()
		panic("recovered")
	})
	wg.Wait()
}
