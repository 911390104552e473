package plugin

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

const queueSize = 16

// Dispatcher runs subscribed plugins for events off the caller's goroutine.
// Events are handled one at a time in arrival order.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	queue    chan Request
	wg       sync.WaitGroup

	// OnResult, when set, is called after each plugin run.
	OnResult func(p *Plugin, req Request, resp *Response, err error)
}

// NewDispatcher creates a dispatcher over m and e.
func NewDispatcher(m *Manager, e *Executor) *Dispatcher {
	return &Dispatcher{
		manager:  m,
		executor: e,
		queue:    make(chan Request, queueSize),
	}
}

// Notify queues req. It never blocks: when the queue is full the event is
// dropped and Notify returns false.
func (d *Dispatcher) Notify(req Request) bool {
	if len(d.manager.Subscribers(req.Event)) == 0 {
		return true
	}
	select {
	case d.queue <- req:
		return true
	default:
		log.WithField("event", req.Event).Warn("plugin queue full, event dropped")
		return false
	}
}

// Run handles queued events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	d.wg.Add(1)
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.handle(ctx, req)
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, req Request) {
	for _, p := range d.manager.Subscribers(req.Event) {
		r := req
		resp, err := d.executor.Execute(ctx, p, &r)

		entry := log.WithFields(log.Fields{"plugin": p.Manifest.Name, "event": req.Event})
		switch {
		case err != nil:
			entry.WithError(err).Warn("plugin failed")
		case !resp.Success:
			entry.WithField("error", resp.Error).Warn("plugin reported failure")
		default:
			entry.Debug("plugin ran")
		}

		if d.OnResult != nil {
			d.OnResult(p, r, resp, err)
		}
	}
}
