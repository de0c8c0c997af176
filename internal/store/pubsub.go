package store

import (
	"context"
	"sync"
)

// Message mimics redis.Message for in-memory pubsub
type Message struct {
	Channel string
	Payload string
}

// MemoryPubSub mimics redis.PubSub for the in-memory hub
type MemoryPubSub struct {
	channels map[string]bool
	msgChan  chan *Message
	closeCh  chan struct{}
	closed   bool
	mu       sync.RWMutex
}

func newMemoryPubSub(channels []string) *MemoryPubSub {
	channelMap := make(map[string]bool, len(channels))
	for _, ch := range channels {
		channelMap[ch] = true
	}

	return &MemoryPubSub{
		channels: channelMap,
		msgChan:  make(chan *Message, 256),
		closeCh:  make(chan struct{}),
	}
}

// Channel returns the message channel
func (m *MemoryPubSub) Channel() <-chan *Message {
	return m.msgChan
}

// Close closes the subscription
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.closeCh)
		close(m.msgChan)
	}
	return nil
}

// deliver sends a message without blocking the publisher
func (m *MemoryPubSub) deliver(msg *Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed || !m.channels[msg.Channel] {
		return
	}

	select {
	case m.msgChan <- msg:
	default:
		// slow subscriber, drop
	}
}

// PubSubHub fans published messages out to in-memory subscriptions
type PubSubHub struct {
	subscribers map[string][]*MemoryPubSub // channel -> subscribers
	mu          sync.RWMutex
}

// NewPubSubHub creates a new pubsub hub
func NewPubSubHub() *PubSubHub {
	return &PubSubHub{
		subscribers: make(map[string][]*MemoryPubSub),
	}
}

// Subscribe registers a subscription that lives until ctx is done or it is closed
func (h *PubSubHub) Subscribe(ctx context.Context, channels ...string) *MemoryPubSub {
	sub := newMemoryPubSub(channels)

	h.mu.Lock()
	for _, channel := range channels {
		h.subscribers[channel] = append(h.subscribers[channel], sub)
	}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closeCh:
		}
		h.remove(sub, channels)
	}()

	return sub
}

func (h *PubSubHub) remove(sub *MemoryPubSub, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, channel := range channels {
		list := h.subscribers[channel]
		for i, s := range list {
			if s == sub {
				h.subscribers[channel] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(h.subscribers[channel]) == 0 {
			delete(h.subscribers, channel)
		}
	}
}

// Publish sends a message to all subscribers of a channel
func (h *PubSubHub) Publish(channel, payload string) {
	h.mu.RLock()
	subscribers := make([]*MemoryPubSub, len(h.subscribers[channel]))
	copy(subscribers, h.subscribers[channel])
	h.mu.RUnlock()

	msg := &Message{Channel: channel, Payload: payload}
	for _, sub := range subscribers {
		sub.deliver(msg)
	}
}
