package signal

import (
	"context"
	"sync"

	"github.com/nextgenhealthcare/signaling-server/pkg/executils"
	"github.com/nextgenhealthcare/signaling-server/pkg/wsutils"
)

// Notifier fans room-membership changes out to observer websockets (the
// waiting-room UI polls it instead of hammering the REST list). Updates are
// coalesced: a dispatch while one is pending is folded into it.
type Notifier struct {
	mu        sync.Mutex
	listeners map[string]*wsutils.ThreadSafeWriter
	updateCh  chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		listeners: make(map[string]*wsutils.ThreadSafeWriter),
		updateCh:  make(chan struct{}, 1),
	}
}

func (n *Notifier) Listen(id string, w *wsutils.ThreadSafeWriter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners[id] = w
}

func (n *Notifier) Stop(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, id)
}

// Dispatch schedules a rooms-updated push. Never blocks.
func (n *Notifier) Dispatch() {
	select {
	case n.updateCh <- struct{}{}:
	default:
	}
}

func (n *Notifier) getListeners() (result []*wsutils.ThreadSafeWriter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, listener := range n.listeners {
		result = append(result, listener)
	}
	return
}

// OnUpdateRooms runs fn for every listener each time a dispatch lands,
// until ctx is canceled.
func (n *Notifier) OnUpdateRooms(ctx context.Context, fn func(*wsutils.ThreadSafeWriter)) {
	var threshold uint64 = 1000000
	var step uint64 = 2
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.updateCh:
			executils.ParallelExec(n.getListeners(), threshold, step, fn)
		}
	}
}
