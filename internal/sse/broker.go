// Package sse implements a Server-Sent Events broker for pushing graph
// change events to connected UIs.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event is one SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// command is a request to the broker loop.
type command struct {
	subscribe   chan []byte
	unsubscribe chan []byte
	event       *Event
	object      *objectEvent
	count       chan int
}

type objectEvent struct {
	kind string
	id   string
}

// Broker fans out events to subscribed clients.
//
// A single loop goroutine owns all mutable state (clients, graph throttle
// timestamp); public methods talk to it over one command channel, so no
// mutexes are needed.
type Broker struct {
	graphMin time.Duration

	commands chan command
	stopCh   chan struct{}
	stopped  chan struct{}
	closed   atomic.Bool
}

// NewBroker creates a broker. graphThrottle bounds how often the aggregate
// graph.updated event fires alongside per-object events.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}
	b := &Broker{
		graphMin: graphThrottle,
		commands: make(chan command, 256),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time

	broadcast := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload))
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case cmd := <-b.commands:
			switch {
			case cmd.subscribe != nil:
				clients[cmd.subscribe] = struct{}{}

			case cmd.unsubscribe != nil:
				if _, ok := clients[cmd.unsubscribe]; ok {
					delete(clients, cmd.unsubscribe)
					close(cmd.unsubscribe)
				}

			case cmd.event != nil:
				broadcast(*cmd.event)

			case cmd.object != nil:
				broadcast(Event{
					Type: "object." + cmd.object.kind,
					Data: map[string]string{"id": cmd.object.id},
				})
				if now := time.Now(); now.Sub(lastGraph) >= b.graphMin {
					lastGraph = now
					broadcast(Event{Type: "graph.updated", Data: map[string]string{}})
				}

			case cmd.count != nil:
				cmd.count <- len(clients)
			}
		}
	}
}

// send delivers a command unless the broker has stopped.
func (b *Broker) send(cmd command) bool {
	select {
	case b.commands <- cmd:
		return true
	case <-b.stopped:
		return false
	}
}

// Close stops the loop and closes every client channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() || !b.send(command{subscribe: ch}) {
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	b.send(command{unsubscribe: ch})
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	if !b.send(command{count: resp}) {
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts an arbitrary event.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	b.send(command{event: &ev})
}

// PublishObjectEvent broadcasts an object change (kind is "created",
// "updated", or "deleted") plus a throttled graph.updated event.
func (b *Broker) PublishObjectEvent(kind, id string) {
	if b.closed.Load() {
		return
	}
	b.send(command{object: &objectEvent{kind: kind, id: id}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
