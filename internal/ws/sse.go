package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leafsii/stability-vault/internal/store"
	"go.uber.org/zap"
)

type SSEHandler struct {
	cache          *store.Cache
	channels       []string
	allowedOrigins []string
	heartbeat      time.Duration
	logger         *zap.SugaredLogger
}

func NewSSEHandler(cache *store.Cache, channels []string, allowedOrigins []string, logger *zap.SugaredLogger) *SSEHandler {
	return &SSEHandler{
		cache:          cache,
		channels:       channels,
		allowedOrigins: allowedOrigins,
		heartbeat:      30 * time.Second,
		logger:         logger,
	}
}

func (h *SSEHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origin, h.allowedOrigins) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	topics := parseTopics(r)
	channels := h.mapTopicsToChannels(topics)
	if len(channels) == 0 {
		channels = h.channels
	}

	h.logger.Debugw("SSE connection established", "topics", topics, "channels", channels)

	ctx := r.Context()
	updates, ok := subscribe(ctx, h.cache, channels)
	if !ok {
		h.logger.Warnw("No PubSub available; SSE updates disabled for this connection")
		h.sendEvent(w, "connected", "SSE connection established (no pubsub)", nil)
		return
	}

	h.sendEvent(w, "connected", "SSE connection established", nil)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debugw("SSE client disconnected")
			return

		case <-heartbeat.C:
			h.sendEvent(w, "heartbeat", "ping", map[string]interface{}{
				"timestamp": time.Now().Unix(),
			})

		case u, ok := <-updates:
			if !ok {
				return
			}

			var data interface{}
			if err := json.Unmarshal([]byte(u.Payload), &data); err != nil {
				h.logger.Warnw("Failed to parse message payload", "channel", u.Channel, "error", err)
				continue
			}

			h.sendEvent(w, channelToEventType(u.Channel), u.Channel, data)
		}
	}
}

func parseTopics(r *http.Request) []string {
	topicsParam := r.URL.Query().Get("topics")
	if topicsParam == "" {
		return nil
	}
	return strings.Split(topicsParam, ",")
}

// mapTopicsToChannels resolves "events", "prices" and single event kinds
// against the configured channel set.
func (h *SSEHandler) mapTopicsToChannels(topics []string) []string {
	seen := make(map[string]bool)
	channels := make([]string, 0)
	add := func(channel string) {
		if !seen[channel] {
			seen[channel] = true
			channels = append(channels, channel)
		}
	}

	for _, topic := range topics {
		topic = strings.TrimSpace(topic)
		switch strings.ToLower(topic) {
		case "events":
			for _, channel := range h.channels {
				if eventKind(channel) != "" {
					add(channel)
				}
			}
		case "prices", "price":
			add(store.ChannelPrices)
		default:
			want := store.EventChannel(strings.ToUpper(topic))
			for _, channel := range h.channels {
				if channel == want {
					add(channel)
				}
			}
		}
	}

	return channels
}

func channelToEventType(channel string) string {
	if channel == store.ChannelPrices {
		return "price_update"
	}
	if kind := eventKind(channel); kind != "" {
		return strings.ToLower(kind) + "_event"
	}
	return "update"
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType, id string, data interface{}) {
	dataBytes := []byte("{}")
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			h.logger.Errorw("Failed to marshal SSE data", "error", err)
			return
		}
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "id: %s\n", id)
	fmt.Fprintf(w, "data: %s\n\n", dataBytes)

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
