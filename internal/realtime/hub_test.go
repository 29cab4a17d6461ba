package realtime

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(h *Hub, userID uuid.UUID) *Client {
	return &Client{ID: uuid.New().String(), UserID: userID, hub: h, send: make(chan WSMessage, 4)}
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return WSMessage{}
	}
}

func TestHub_LocalDelivery(t *testing.T) {
	h := NewHub(nil, nil, nil)
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b := testClient(h, alice), testClient(h, alice), testClient(h, bob)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	assert.Equal(t, 2, h.Connections(alice))

	require.NoError(t, h.PublishToUser(alice, EventNewMessage, map[string]string{"content": "hi"}))

	for _, c := range []*Client{a1, a2} {
		msg := receive(t, c)
		assert.Equal(t, EventNewMessage, msg.Event)
		assert.JSONEq(t, `{"content":"hi"}`, string(msg.Data))
	}
	assert.Empty(t, b.send)

	h.Unregister(a1)
	h.Unregister(a1) // second call is a no-op
	assert.Equal(t, 1, h.Connections(alice))
	_, open := <-a1.send
	assert.False(t, open)
}

func TestHub_RedisFanOut(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bridge := NewRedisPubSub(rdb, nil)
	// Two hubs share one Redis, as two server instances would.
	receiver := NewHub(nil, bridge, bridge)
	sender := NewHub(nil, bridge, bridge)

	user := uuid.New()
	c := testClient(receiver, user)
	receiver.Register(c)

	require.NoError(t, sender.PublishToUser(user, EventApplicationUpdate, map[string]string{"status": "approved"}))

	msg := receive(t, c)
	assert.Equal(t, EventApplicationUpdate, msg.Event)
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "approved", body["status"])

	receiver.Unregister(c)
	assert.Zero(t, receiver.Connections(user))
}

func TestUserChannel(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	assert.Equal(t, "user:6f1c2d3e-0000-4000-8000-000000000001", UserChannel(id))
}

// gatedSubscriber holds every SubscribeUser call until `want` calls are in flight,
// so concurrent Register calls only pass when none of them holds the hub lock.
type gatedSubscriber struct {
	mu        sync.Mutex
	want      int
	calls     int
	cancelled int
	arrived   chan struct{}
	handlers  []func(event string, payload []byte)
}

func newGatedSubscriber(want int) *gatedSubscriber {
	return &gatedSubscriber{want: want, arrived: make(chan struct{})}
}

func (g *gatedSubscriber) SubscribeUser(_ uuid.UUID, handler func(event string, payload []byte)) (func(), error) {
	g.mu.Lock()
	g.calls++
	g.handlers = append(g.handlers, handler)
	if g.calls == g.want {
		close(g.arrived)
	}
	g.mu.Unlock()

	select {
	case <-g.arrived:
	case <-time.After(2 * time.Second):
	}
	return func() {
		g.mu.Lock()
		g.cancelled++
		g.mu.Unlock()
	}, nil
}

func (g *gatedSubscriber) counts() (calls, cancelled int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls, g.cancelled
}

func subscribed(h *Hub, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[userID]
	return ok
}

func TestHub_RegisterSubscribesOutsideLock(t *testing.T) {
	sub := newGatedSubscriber(2)
	h := NewHub(nil, nil, sub)
	user := uuid.New()
	c1, c2 := testClient(h, user), testClient(h, user)

	var wg sync.WaitGroup
	for _, c := range []*Client{c1, c2} {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			h.Register(c)
		}(c)
	}
	wg.Wait()

	calls, cancelled := sub.counts()
	assert.Equal(t, 2, calls, "both connections reached SUBSCRIBE concurrently")
	assert.Equal(t, 1, cancelled, "the losing subscription is dropped")
	assert.Equal(t, 2, h.Connections(user))
	assert.True(t, subscribed(h, user))

	// Either handler delivers to both local connections.
	sub.handlers[0](EventNewMessage, []byte(`{"content":"hi"}`))
	receive(t, c1)
	receive(t, c2)

	h.Unregister(c1)
	_, cancelled = sub.counts()
	assert.Equal(t, 1, cancelled, "subscription stays while a connection remains")
	h.Unregister(c2)
	_, cancelled = sub.counts()
	assert.Equal(t, 2, cancelled)
	assert.False(t, subscribed(h, user))
}

func TestHub_ConcurrentRegisterDeliversOnce(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	bridge := NewRedisPubSub(rdb, nil)
	h := NewHub(nil, bridge, bridge)
	user := uuid.New()

	clients := make([]*Client, 4)
	var wg sync.WaitGroup
	for i := range clients {
		clients[i] = testClient(h, user)
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			h.Register(c)
		}(clients[i])
	}
	wg.Wait()
	channel := UserChannel(user)
	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub(channel)[channel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.PublishToUser(user, EventNewMessage, map[string]string{"content": "once"}))
	for _, c := range clients {
		msg := receive(t, c)
		assert.JSONEq(t, `{"content":"once"}`, string(msg.Data))
	}
	time.Sleep(100 * time.Millisecond)
	for _, c := range clients {
		assert.Empty(t, c.send, "a duplicate subscription would deliver twice")
	}
}
