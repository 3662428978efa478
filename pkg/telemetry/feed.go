package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// FeedEvent is one JSON message pushed to websocket subscribers.
type FeedEvent struct {
	Timestamp string  `json:"timestamp"`
	Kind      string  `json:"kind"`
	Alert     *Alert  `json:"alert,omitempty"`
	RMS       float64 `json:"rms,omitempty"`
	AudioDB   float64 `json:"audio_db,omitempty"`
	IsSpeaking bool   `json:"is_speaking,omitempty"`
}

// Feed serves a websocket endpoint streaming FeedEvent JSON messages,
// grounded on the teacher's own coder/websocket + wsjson client usage in
// pkg/providers/tts/lokutor.go, adapted from client-Dial to server-Accept.
type Feed struct {
	mu          sync.Mutex
	subscribers map[*feedSubscriber]struct{}
}

type feedSubscriber struct {
	ch chan FeedEvent
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[*feedSubscriber]struct{})}
}

// Broadcast pushes an event to every connected subscriber. A subscriber
// whose channel is full has this new event dropped rather than blocking
// the caller (pkg/frame.Broadcast instead drops the oldest queued frame).
func (f *Feed) Broadcast(ev FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subscribers {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// ServeHTTP accepts a websocket connection and streams FeedEvents to it
// until the client disconnects or the request context is canceled.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := &feedSubscriber{ch: make(chan FeedEvent, 32)}
	f.mu.Lock()
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.subscribers, sub)
		f.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub.ch:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
