package singreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReentrantMutex_NestedAcquisition(t *testing.T) {
	var m reentrantMutex

	m.Lock()
	m.Lock()
	m.Lock()
	m.Unlock()
	m.Unlock()
	m.Unlock()

	// Fully released: another goroutine can take it.
	acquired := make(chan struct{})
	go func() {
		m.Lock()
		defer m.Unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("mutex was not released after balanced unlocks")
	}
}

func TestReentrantMutex_ExclusiveAcrossGoroutines(t *testing.T) {
	var m reentrantMutex
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.Lock()
		defer m.Unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired a held mutex")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second goroutine never acquired the released mutex")
	}
}

func TestReentrantMutex_UnlockByNonOwnerPanics(t *testing.T) {
	var m reentrantMutex
	m.Lock()
	defer m.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.Panics(t, func() {
			m.Unlock()
		})
	}()
	<-done
}

func TestRegistry_CreationMutexAccessor(t *testing.T) {
	r := New()
	mu := r.CreationMutex()

	// Collaborators can extend the creation critical section and still call
	// back into the registry from under it.
	mu.Lock()
	defer mu.Unlock()

	err := r.RegisterInstance("service", &testService{val: 1})
	assert.NoError(t, err)

	instance, err := r.GetOrCreate("other", func() (any, error) {
		return &testService{val: 2}, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, instance.(*testService).val)
}

func TestGoroutineID_StablePerGoroutine(t *testing.T) {
	id := goroutineID()
	assert.Equal(t, id, goroutineID())

	otherID := make(chan int64, 1)
	go func() {
		otherID <- goroutineID()
	}()
	assert.NotEqual(t, id, <-otherID)
}
