package ws

import (
	"context"
	"strings"

	"github.com/leafsii/stability-vault/internal/store"
)

// update is a pubsub message from either Redis or the in-memory hub
type update struct {
	Channel string
	Payload string
}

// ChannelSet builds the channel list for the given event kinds plus price ticks
func ChannelSet(eventKinds []string) []string {
	channels := make([]string, 0, len(eventKinds)+1)
	for _, kind := range eventKinds {
		channels = append(channels, store.EventChannel(kind))
	}
	return append(channels, store.ChannelPrices)
}

// subscribe listens on channels through Redis or the in-memory hub. The
// returned stream closes when ctx ends.
func subscribe(ctx context.Context, cache *store.Cache, channels []string) (<-chan update, bool) {
	out := make(chan update, 64)

	if pubsub := cache.Subscribe(ctx, channels...); pubsub != nil {
		go func() {
			defer close(out)
			defer pubsub.Close()
			ch := pubsub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					forward(ctx, out, update{Channel: msg.Channel, Payload: msg.Payload})
				}
			}
		}()
		return out, true
	}

	if memory := cache.SubscribeInMemory(ctx, channels...); memory != nil {
		go func() {
			defer close(out)
			defer memory.Close()
			ch := memory.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					if msg != nil {
						forward(ctx, out, update{Channel: msg.Channel, Payload: msg.Payload})
					}
				}
			}
		}()
		return out, true
	}

	close(out)
	return out, false
}

func forward(ctx context.Context, out chan<- update, u update) {
	select {
	case out <- u:
	case <-ctx.Done():
	}
}

// eventKind returns the kind of an event channel, or "" for other channels
func eventKind(channel string) string {
	prefix := store.ChannelEvents + ":"
	if strings.HasPrefix(channel, prefix) {
		return strings.TrimPrefix(channel, prefix)
	}
	return ""
}
