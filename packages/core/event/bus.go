package event

import "sync"

// Handler receives events from the bus.
type Handler interface {
	HandleEvent(e Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(e Event)

func (f HandlerFunc) HandleEvent(e Event) { f(e) }

type subscription struct {
	name    Name // empty matches every event
	handler Handler
}

// Bus fans events out to handlers synchronously.
// Handlers may be added from any goroutine; the registry is append-only.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// On registers h for the named event.
func (b *Bus) On(name Name, h Handler) {
	b.subscribe(name, h)
}

// OnAll registers h for every event.
func (b *Bus) OnAll(h Handler) {
	b.subscribe("", h)
}

// Subscribe registers h for each of the given names, or for every event when
// no name is given.
func (b *Bus) Subscribe(h Handler, names ...Name) {
	if len(names) == 0 {
		b.OnAll(h)
		return
	}
	for _, name := range names {
		b.On(name, h)
	}
}

func (b *Bus) subscribe(name Name, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

// Emit delivers e to every matching handler in registration order.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	name := e.Name()
	for _, sub := range subs {
		if sub.name == "" || sub.name == name {
			sub.handler.HandleEvent(e)
		}
	}
}

// Len returns the number of registered subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
