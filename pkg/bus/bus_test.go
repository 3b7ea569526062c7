package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishReachesThreadSubscribers(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("t1", 4)
	defer cancel()

	b.Publish(Event{Kind: "message", Thread: "t1"})
	evt := recvOne(t, ch)
	require.Equal(t, "message", evt.Kind)
	require.Equal(t, "t1", evt.Thread)
	require.NotZero(t, evt.TS, "publish stamps missing timestamps")
}

func TestEventsAreThreadFiltered(t *testing.T) {
	b := New()
	ch1, cancel1 := b.Subscribe("t1", 4)
	defer cancel1()
	ch2, cancel2 := b.Subscribe("t2", 4)
	defer cancel2()

	b.Publish(Event{Kind: "message", Thread: "t2"})
	require.Equal(t, "t2", recvOne(t, ch2).Thread)
	select {
	case evt := <-ch1:
		t.Fatalf("t1 subscriber received foreign event %+v", evt)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe("t1", 4)
	cancel()

	b.Publish(Event{Kind: "message", Thread: "t1"})
	select {
	case evt := <-ch:
		t.Fatalf("received event after unsubscribe: %+v", evt)
	default:
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	_, cancel := b.Subscribe("t1", 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Kind: "message", Thread: "t1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
}
