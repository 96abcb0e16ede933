package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := NewBus()
	ch, unreg := b.Subscribe()
	defer unreg()

	b.Publish(Event{Type: KindTierSwitch, Payload: TierSwitchPayload{From: "vector", To: "raster"}})

	select {
	case ev := <-ch:
		assert.Equal(t, KindTierSwitch, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unreg := b.Subscribe()
	unreg()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := NewBus()
	const n = 5
	chans := make([]<-chan Event, n)
	for i := 0; i < n; i++ {
		chans[i], _ = b.Subscribe()
	}
	b.Publish(Event{Type: KindLODChange})
	for i, ch := range chans {
		select {
		case ev := <-ch:
			assert.Equal(t, KindLODChange, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive event", i)
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBus()
	_, _ = b.Subscribe() // never drained
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: KindError})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBus_SubscribeFuncRecoversPanic(t *testing.T) {
	b := NewBus()
	var wg sync.WaitGroup
	wg.Add(1)
	unreg := b.SubscribeFunc(func(ev Event) {
		defer wg.Done()
		panic("boom")
	})
	defer unreg()
	b.Publish(Event{Type: KindError})

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
	// Bus must still be usable after a panicking handler.
	ch, unreg2 := b.Subscribe()
	defer unreg2()
	b.Publish(Event{Type: KindTierSwitch})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("bus stopped delivering after a subscriber panic")
	}
}

func TestBus_Close(t *testing.T) {
	b := NewBus()
	ch, _ := b.Subscribe()
	b.Close()
	_, ok := <-ch
	assert.False(t, ok)
	require.Equal(t, 0, b.SubscriberCount())
	// Publish after Close is a no-op, not a panic.
	assert.NotPanics(t, func() { b.Publish(Event{Type: KindError}) })
}
