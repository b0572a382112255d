package events

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishReachesAllObservers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := NewBus[string]("test", logger)

	var badge, list []string
	bus.Subscribe(func(e string) { badge = append(badge, e) })
	bus.Subscribe(func(e string) { list = append(list, e) })

	bus.Publish("one")

	assert.Equal(t, []string{"one"}, badge)
	assert.Equal(t, []string{"one"}, list)
}

func TestBus_NoReplayForLateObservers(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := NewBus[int]("test", logger)

	bus.Publish(1)

	var got []int
	bus.Subscribe(func(e int) { got = append(got, e) })
	bus.Publish(2)

	assert.Equal(t, []int{2}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	logger, _ := test.NewNullLogger()
	bus := NewBus[int]("test", logger)

	var a, b int
	unsubA := bus.Subscribe(func(int) { a++ })
	bus.Subscribe(func(int) { b++ })
	require.Equal(t, 2, bus.Len())

	bus.Publish(0)
	unsubA()
	unsubA() // second call is a no-op
	bus.Publish(0)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, bus.Len())
}

func TestBus_PanickingObserverIsIsolated(t *testing.T) {
	logger, hook := test.NewNullLogger()
	bus := NewBus[string]("test", logger)

	var delivered bool
	bus.Subscribe(func(string) { panic("boom") })
	bus.Subscribe(func(string) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish("x") })
	assert.True(t, delivered, "Observers after a panicking one must still run")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Observer panicked", entry.Message)
	assert.Equal(t, "boom", entry.Data["panic"])
}
