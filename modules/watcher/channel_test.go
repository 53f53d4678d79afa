package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(path string) notifier.Result {
	return notifier.Result{Event: notifier.Event{Kind: notifier.KindModify, Paths: []string{path}}}
}

func TestChannelPreservesSendOrder(t *testing.T) {
	tx, rx := newChannel()

	for i := 0; i < 100; i++ {
		require.True(t, tx.Send(result(fmt.Sprint(i))))
	}
	assert.Equal(t, 100, rx.Len())

	for i := 0; i < 100; i++ {
		res, ok, err := rx.TryRecv()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), res.Event.Paths[0])
	}

	_, ok, err := rx.TryRecv()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestChannelConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 500

	tx, rx := newChannel()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				tx.Send(result(fmt.Sprintf("%d/%d", p, i)))
			}
		}(p)
	}

	go func() {
		wg.Wait()
		tx.Close()
	}()

	last := make(map[int]int)
	received := 0
	for {
		res, err := rx.Recv(context.Background())
		if errors.Is(err, ErrDisconnected) {
			break
		}
		require.NoError(t, err)

		var p, i int
		_, err = fmt.Sscanf(res.Event.Paths[0], "%d/%d", &p, &i)
		require.NoError(t, err)

		// Each producer's results arrive in the order it sent them.
		if prev, ok := last[p]; ok {
			require.Greater(t, i, prev)
		}
		last[p] = i
		received++
	}

	assert.Equal(t, producers*perProducer, received)
}

func TestChannelDrainsBeforeDisconnect(t *testing.T) {
	tx, rx := newChannel()

	tx.Send(result("a"))
	tx.Send(result("b"))
	tx.Close()

	assert.False(t, tx.Send(result("c")))

	res, err := rx.RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Event.Paths[0])

	res, err = rx.RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Event.Paths[0])

	_, err = rx.RecvTimeout(time.Second)
	assert.ErrorIs(t, err, ErrDisconnected)

	_, ok, err := rx.TryRecv()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestChannelRecvTimeout(t *testing.T) {
	_, rx := newChannel()

	start := time.Now()
	_, err := rx.RecvTimeout(50 * time.Millisecond)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestChannelRecvWakesOnSend(t *testing.T) {
	tx, rx := newChannel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tx.Send(result("late"))
	}()

	res, err := rx.RecvTimeout(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", res.Event.Paths[0])
}

func TestChannelRecvHonoursContext(t *testing.T) {
	_, rx := newChannel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rx.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChannelSendAfterReceiverClosed(t *testing.T) {
	tx, rx := newChannel()

	tx.Send(result("a"))
	rx.Close()

	assert.Equal(t, 0, rx.Len())
	assert.NotPanics(t, func() {
		assert.False(t, tx.Send(result("b")))
		tx.Handler()(result("c"))
	})

	_, ok, err := rx.TryRecv()
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestChannelCarriesErrors(t *testing.T) {
	tx, rx := newChannel()

	boom := errors.New("boom")
	tx.Send(notifier.Result{Err: boom})

	res, err := rx.RecvTimeout(time.Second)
	require.NoError(t, err)
	assert.True(t, res.IsErr())
	assert.ErrorIs(t, res.Err, boom)
}

func TestChannelSendNeverBlocks(t *testing.T) {
	const n = 100000

	tx, rx := newChannel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			tx.Send(result("burst"))
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("sender blocked without a reader")
	}

	assert.Equal(t, n, rx.Len())

	rx.Close()
	assert.Equal(t, 0, rx.Len())
}
