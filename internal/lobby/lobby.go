// Package lobby pushes the list of joinable rooms to lobby subscribers
// whenever the room registry changes.
package lobby

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"cipherparty/internal/session"
)

const subscriberBuffer = 8

// Source is the registry the lobby watches.
type Source interface {
	Changes() <-chan struct{}
	ListAvailable() []session.Listing
}

// Broadcaster fans room listings out to subscribers.
type Broadcaster struct {
	src  Source
	log  zerolog.Logger
	mu   sync.Mutex
	subs map[chan []session.Listing]struct{}
}

func NewBroadcaster(src Source, log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		src:  src,
		log:  log.With().Str("component", "lobby").Logger(),
		subs: make(map[chan []session.Listing]struct{}),
	}
}

// Subscribe returns a channel receiving listings, primed with the current
// one, and a function that ends the subscription.
func (b *Broadcaster) Subscribe() (<-chan []session.Listing, func()) {
	ch := make(chan []session.Listing, subscriberBuffer)
	ch <- b.src.ListAvailable()

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Run publishes a fresh listing after every change signal until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.src.Changes():
			b.publish(b.src.ListAvailable())
		}
	}
}

func (b *Broadcaster) publish(listing []session.Listing) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- listing:
		default:
			b.log.Debug().Msg("lobby subscriber lagging, dropping listing")
		}
	}
}
