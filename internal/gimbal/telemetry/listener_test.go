package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

func attitudeFrame() frame.Frame {
	return frame.Frame{
		Kind:        frame.Variable,
		Source:      address.Gimbal,
		Destination: address.Network,
		Control:     frame.Read,
		Identifier:  "GAC",
		Payload:     []byte("1194FB1E001E"),
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	l := NewListener(8)
	_, ch := l.Subscribe()

	now := time.Now()
	for i := 0; i < 3; i++ {
		l.Publish(attitudeFrame(), now)
	}
	for want := uint64(1); want <= 3; want++ {
		ev := <-ch
		assert.Equal(t, want, ev.Seq)
		assert.Equal(t, frame.Identifier("GAC"), ev.Frame.Identifier)
		assert.True(t, ev.ReceivedAt.Equal(now))
	}
}

func TestPublishWithoutSubscribersIsDiscarded(t *testing.T) {
	l := NewListener(1)
	ev := l.Publish(attitudeFrame(), time.Now())
	assert.Equal(t, uint64(1), ev.Seq)
	st := l.Stats()
	assert.Equal(t, uint64(1), st.Published)
	assert.Zero(t, st.Delivered)
	assert.Zero(t, st.Dropped)
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	l := NewListener(2)
	l.Subscribe()
	_, fast := l.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			l.Publish(attitudeFrame(), time.Now())
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	assert.Len(t, fast, 2)
	st := l.Stats()
	assert.Equal(t, uint64(5), st.Published)
	assert.Equal(t, uint64(4), st.Delivered)
	assert.Equal(t, uint64(6), st.Dropped)
	require.Len(t, st.Subscribers, 2)
	for _, s := range st.Subscribers {
		assert.Equal(t, 2, s.Queued)
		assert.Equal(t, uint64(3), s.Dropped)
	}
}

func TestSubscribeFilter(t *testing.T) {
	l := NewListener(4)
	_, onlyZoom := l.Subscribe("ZOM")
	_, all := l.Subscribe()

	l.Publish(attitudeFrame(), time.Now())
	zoom := attitudeFrame()
	zoom.Identifier = "ZOM"
	zoom.Payload = []byte("0100")
	l.Publish(zoom, time.Now())

	require.Len(t, onlyZoom, 1)
	ev := <-onlyZoom
	assert.Equal(t, frame.Identifier("ZOM"), ev.Frame.Identifier)
	assert.Equal(t, uint64(2), ev.Seq)
	assert.Len(t, all, 2)

	var filters [][]string
	for _, s := range l.Stats().Subscribers {
		filters = append(filters, s.Filter)
	}
	assert.Contains(t, filters, []string{"ZOM"})
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	l := NewListener(1)
	id, ch := l.Subscribe()
	l.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	l.Unsubscribe(id)
	l.Unsubscribe("missing")
	assert.Empty(t, l.Stats().Subscribers)
}

func TestCloseClosesAllAndRejectsLater(t *testing.T) {
	l := NewListener(1)
	_, a := l.Subscribe()
	_, b := l.Subscribe()
	l.Close()
	l.Close()

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-b
	assert.False(t, ok)

	_, c := l.Subscribe()
	_, ok = <-c
	assert.False(t, ok)
	l.Publish(attitudeFrame(), time.Now())
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	l := NewListener(16)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Publish(attitudeFrame(), time.Now())
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id, ch := l.Subscribe()
				select {
				case <-ch:
				default:
				}
				l.Unsubscribe(id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(400), l.Stats().Published)
}

func TestNewListenerDefaultBuffer(t *testing.T) {
	l := NewListener(0)
	assert.Equal(t, DefaultBufferSize, l.bufferSize)
}
