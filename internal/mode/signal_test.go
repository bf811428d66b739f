package mode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignal_SetNotifies(t *testing.T) {
	s := NewSignal(true)

	var got []bool
	sub := s.Subscribe(func(v bool) {
		got = append(got, v)
		assert.Equal(t, v, s.Editable(), "listener must observe the new value")
	})
	defer sub.Unsubscribe()

	assert.True(t, s.Set(false))
	assert.False(t, s.Set(false), "setting the same value is not a change")
	assert.True(t, s.Set(true))

	assert.Equal(t, []bool{false, true}, got)
}

func TestSignal_Unsubscribe(t *testing.T) {
	s := NewSignal(false)

	calls := 0
	sub := s.Subscribe(func(bool) { calls++ })
	require.Equal(t, 1, s.Subscribers())

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, s.Subscribers())

	s.Set(true)
	assert.Zero(t, calls)
}

func TestSignal_UnsubscribeDuringNotify(t *testing.T) {
	s := NewSignal(true)

	var second int
	var sub1 *Subscription
	sub1 = s.Subscribe(func(bool) { sub1.Unsubscribe() })
	sub2 := s.Subscribe(func(bool) { second++ })
	defer sub2.Unsubscribe()

	s.Set(false)
	assert.Equal(t, 1, second, "listeners registered at Set time all run")
	assert.Equal(t, 1, s.Subscribers())
}

func TestSignal_ConcurrentReaders(t *testing.T) {
	s := NewSignal(true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Editable()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		s.Set(i%2 == 0)
	}
	wg.Wait()
}

func TestSubscription_NilSafe(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Unsubscribe)
}
