package statedb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/storage/remote"
)

const pushTimeout = 10 * time.Second

// pushOp is a remote write of one row; row is nil for deletes.
type pushOp struct {
	id  string
	row *remote.Row
}

func (op pushOp) name() string {
	if op.row == nil {
		return "delete"
	}
	return "upsert"
}

// pusher sends the remote writes of one collection in order, one at a time.
// Failures are logged and counted, never retried.
type pusher struct {
	key     string
	backend remote.Backend
	log     core.Logger

	mu      sync.Mutex
	queue   chan pushOp
	closed  bool
	pending sync.WaitGroup
	done    chan struct{}
}

func newPusher(key string, backend remote.Backend, logger core.Logger, size int) *pusher {
	p := &pusher{
		key:     key,
		backend: backend,
		log:     logger,
		queue:   make(chan pushOp, size),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pusher) run() {
	defer close(p.done)
	for op := range p.queue {
		p.push(op)
		p.pending.Done()
	}
}

func (p *pusher) push(op pushOp) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	var err error
	if op.row == nil {
		err = p.backend.Delete(ctx, p.key, op.id)
	} else {
		err = p.backend.Upsert(ctx, p.key, *op.row)
	}
	if err != nil {
		remotePushes.WithLabelValues(p.key, op.name(), "error").Inc()
		p.log.Error("remote sync failed: "+err.Error(), map[string]interface{}{
			"collection": p.key,
			"id":         op.id,
			"op":         op.name(),
		})
		return
	}
	remotePushes.WithLabelValues(p.key, op.name(), "ok").Inc()
}

// enqueue is a no-op on a nil or closed pusher.
func (p *pusher) enqueue(ops ...pushOp) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn("remote sync stopped, dropping writes", map[string]interface{}{"collection": p.key, "count": len(ops)})
		return
	}
	for _, op := range ops {
		p.pending.Add(1)
		p.queue <- op
	}
}

// flush waits for the queued writes to be sent.
func (p *pusher) flush() {
	if p != nil {
		p.pending.Wait()
	}
}

// close sends the queued writes and stops the pusher.
func (p *pusher) close() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}
