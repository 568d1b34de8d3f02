package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe(4)
	defer a.Close()
	defer b.Close()

	msg := []byte("one")
	require.NoError(t, a.Send(context.Background(), msg))
	msg[0] = 'X'
	require.NoError(t, a.Send(context.Background(), []byte("two")))

	assert.Equal(t, "one", string(receive(t, b).Data))
	d := receive(t, b)
	assert.Equal(t, "two", string(d.Data))
	assert.Equal(t, "pipe:a", d.Peer)

	require.NoError(t, b.Send(context.Background(), []byte("back")))
	assert.Equal(t, "back", string(receive(t, a).Data))
}

func TestPipeDropsWhenFull(t *testing.T) {
	a, b := Pipe(1)
	require.NoError(t, a.Send(context.Background(), []byte("kept")))
	require.NoError(t, a.Send(context.Background(), []byte("lost")))
	assert.Equal(t, "kept", string(receive(t, b).Data))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipeClose(t *testing.T) {
	a, b := Pipe(1)
	require.NoError(t, b.Close())
	// Sends to a closed peer vanish like UDP.
	assert.NoError(t, a.Send(context.Background(), []byte("x")))

	_, err := b.Receive(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(context.Background(), []byte("x")), ErrClosed)
}
