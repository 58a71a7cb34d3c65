package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case got := <-c.send:
		return got
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func TestHubRegisterSendUnregister(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	client := &Client{Room: "console:places", send: make(chan []byte, 10)}
	require.True(t, hub.Register(client))
	assert.Equal(t, 1, hub.Count("console:places"))

	hub.Send(client, []byte(`{"type":"notice"}`))
	assert.Equal(t, `{"type":"notice"}`, string(recv(t, client)))

	hub.Unregister(client)
	_, open := <-client.send
	assert.False(t, open)
	assert.Zero(t, hub.Count("console:places"))

	// Sending to a client that left is a no-op.
	hub.Send(client, []byte("late"))
}

func TestHubBroadcastStaysInRoom(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	places := &Client{Room: "console:places", send: make(chan []byte, 10)}
	events := &Client{Room: "console:events", send: make(chan []byte, 10)}
	require.True(t, hub.Register(places))
	require.True(t, hub.Register(events))

	hub.Broadcast("console:places", []byte("saved"))
	hub.Send(events, []byte("direct"))

	assert.Equal(t, "saved", string(recv(t, places)))
	assert.Equal(t, "direct", string(recv(t, events)))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	slow := &Client{Room: DashboardRoom, send: make(chan []byte, 1)}
	require.True(t, hub.Register(slow))

	hub.Send(slow, []byte("one"))
	hub.Send(slow, []byte("two"))

	assert.Eventually(t, func() bool { return hub.Count(DashboardRoom) == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "one", string(<-slow.send))
	_, open := <-slow.send
	assert.False(t, open)
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub(nil)
	go hub.Run()

	client := &Client{Room: DashboardRoom, send: make(chan []byte, 1)}
	require.True(t, hub.Register(client))

	hub.Stop()
	hub.Stop()

	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.Register(&Client{Room: DashboardRoom, send: make(chan []byte)}))
	hub.Send(client, []byte("after stop"))
	hub.Broadcast(DashboardRoom, []byte("after stop"))
}
