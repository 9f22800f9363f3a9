package transport

import (
	"container/list"
	"sync"

	"github.com/helium/libp2p-streams/internal/logging"
)

var senderLog = logging.Logger("transport/sender")

// sendError is what the sender reports back to its owning transport on a
// failed write; the transport forwards it to the active handler's
// HandleInfo and otherwise ignores it. Write errors are non-fatal to the
// sender itself.
type sendError struct {
	err error
}

// sender is the async co-process paired with each transport: it
// serializes outbound writes strictly FIFO and drains its backlog on a
// graceful stop before acknowledging.
type sender struct {
	mu    sync.Mutex
	queue *list.List // of []byte

	sendFn func([]byte) error
	errCh  chan<- sendError

	wake    chan struct{}
	stopCh  chan struct{}
	stopped chan struct{}
}

// newSender constructs a sender over sendFn. errCh receives a sendError
// for every failed write; it must not block (buffer it, or drain it on a
// dedicated goroutine: the transport's main loop does both).
func newSender(sendFn func([]byte) error, errCh chan<- sendError) *sender {
	return &sender{
		queue:   list.New(),
		sendFn:  sendFn,
		errCh:   errCh,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// start launches the sender's drain goroutine.
func (s *sender) start() {
	go s.run()
}

// enqueue appends data to the FIFO queue and wakes the drain goroutine.
func (s *sender) enqueue(data []byte) {
	s.mu.Lock()
	s.queue.PushBack(data)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// stop signals the sender to drain its remaining backlog and exit. The
// returned channel is closed once draining completes.
func (s *sender) stop() <-chan struct{} {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	return s.stopped
}

func (s *sender) run() {
	defer close(s.stopped)

	for {
		select {
		case <-s.wake:
			s.drain()
		case <-s.stopCh:
			s.drain() // finish whatever was already queued before acking
			return
		}
	}
}

func (s *sender) drain() {
	for {
		s.mu.Lock()
		front := s.queue.Front()
		if front == nil {
			s.mu.Unlock()
			return
		}
		s.queue.Remove(front)
		s.mu.Unlock()

		data := front.Value.([]byte)
		if err := s.sendFn(data); err != nil {
			senderLog.Warn("write failed", "bytes", len(data), "err", err)
			select {
			case s.errCh <- sendError{err: err}:
			default:
				senderLog.Warn("dropped send_error notification, transport not draining errCh")
			}
		}
	}
}
