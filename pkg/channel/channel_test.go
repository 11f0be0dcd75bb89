package channel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/channel"
)

func TestChannelFanOutDeliversToEverySubscriber(t *testing.T) {
	ch := channel.New[int]()
	a := ch.Subscribe()
	b := ch.Subscribe()

	provider := channel.NewSemaphoreProvider()
	ch.Send(provider, 7)

	da := <-a
	db := <-b
	require.Equal(t, 7, da.Value)
	require.Equal(t, 7, db.Value)

	da.Semaphore.Signal()
	db.Semaphore.Signal()
}

func TestSemaphoreProviderDrainWaitsForAllSignals(t *testing.T) {
	ch := channel.New[string]()
	sub := ch.Subscribe()
	provider := channel.NewSemaphoreProvider()

	ch.Send(provider, "hello")
	waits := provider.Drain()

	done := make(chan struct{})
	go func() {
		channel.WaitAll(waits)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("WaitAll returned before the subscriber signalled")
	case <-time.After(20 * time.Millisecond):
	}

	delivery := <-sub
	delivery.Semaphore.Signal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitAll did not return after the subscriber signalled")
	}
}

func TestChannelNoReceivers(t *testing.T) {
	ch := channel.New[int]()
	require.True(t, ch.NoReceivers())
	ch.Subscribe()
	require.False(t, ch.NoReceivers())
}

func TestSemaphoreSignalIsIdempotent(t *testing.T) {
	provider := channel.NewSemaphoreProvider()
	sem := provider.GetSemaphore()
	require.NotPanics(t, func() {
		sem.Signal()
		sem.Signal()
	})
}
