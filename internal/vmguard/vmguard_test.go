package vmguard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledGuardNeverPanics(t *testing.T) {
	g := New(false)
	require.NotPanics(t, func() {
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				g.Check()
			}()
		}
		wg.Wait()
	})
}

func TestEnabledGuardBindsToFirstGoroutine(t *testing.T) {
	g := New(true)
	require.NotPanics(t, func() {
		g.Check()
		g.Check()
		g.Check()
	})
}

func TestEnabledGuardPanicsOnSecondGoroutine(t *testing.T) {
	g := New(true)
	g.Check()

	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		g.Check()
	}()
	r := <-done
	require.NotNil(t, r, "a second goroutine touching a strict guard must panic")
}

func TestReleaseRebindsToANewGoroutine(t *testing.T) {
	g := New(true)
	g.Check()
	g.Release()

	done := make(chan any, 1)
	go func() {
		defer func() { done <- recover() }()
		g.Check()
	}()
	r := <-done
	require.Nil(t, r, "Release lets a fresh goroutine rebind without panicking")
}
