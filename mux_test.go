package canlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMuxSubscribeFilteringAndClose(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	c, _ := startDriver(t, bus.Transport())
	producer := openPeer(t, bus)

	m := NewMux(c)
	defer m.Close()

	chA, cancelA := m.Subscribe(ByID(0x100), 1)
	chB, cancelB := m.Subscribe(ByRange(0x200, 0x2FF), 2)
	defer cancelB()

	send := func(id uint32) { require.NoError(t, producer.Write(MustFrame(id, []byte{1, 2, 3}))) }
	send(0x100)
	send(0x210)
	send(0x105)

	select {
	case f := <-chA:
		require.Equal(t, uint32(0x100), f.ID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for A")
	}
	select {
	case f := <-chB:
		require.Equal(t, uint32(0x210), f.ID)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for B")
	}
	select {
	case f := <-chA:
		t.Fatalf("A should be empty, got %s", f)
	case f := <-chB:
		t.Fatalf("B should be empty, got %s", f)
	case <-time.After(50 * time.Millisecond):
	}

	cancelA()
	cancelA()
	_, ok := <-chA
	require.False(t, ok, "A should be closed")

	send(0x100)
	require.NoError(t, m.Close())
	_, ok = <-chB
	require.False(t, ok, "B should be closed after mux close")

	// Subscribing to a closed Mux yields a closed channel.
	ch, cancel := m.Subscribe(nil, 1)
	defer cancel()
	_, ok = <-ch
	require.False(t, ok)
}

func TestMuxClosesWhenLinkCloses(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	c, d := startDriver(t, bus.Transport())

	m := NewMux(c)
	ch, cancel := m.Subscribe(nil, 4)
	defer cancel()

	d.Shutdown()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after shutdown")
	}
}

func TestMuxDropsWhenSubscriberIsSlow(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	c, _ := startDriver(t, bus.Transport())
	producer := openPeer(t, bus)

	m := NewMux(c)
	defer m.Close()
	ch, cancel := m.Subscribe(nil, 1)
	defer cancel()

	probe := make(chan struct{}, 8)
	l := c.CreateMsgListener(func(Frame) { probe <- struct{}{} })
	defer l.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, producer.Write(MustFrame(0x10, []byte{byte(i)})))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-probe:
		case <-time.After(time.Second):
			t.Fatal("frame not dispatched")
		}
	}
	require.Len(t, ch, 1)
	f := <-ch
	require.Equal(t, byte(0), f.Data[0])
}
