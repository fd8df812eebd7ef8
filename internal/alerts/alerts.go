package alerts

import (
	"context"
	"sync"
	"time"

	"github.com/tradeguru/engine/internal/logging"
	"github.com/tradeguru/engine/internal/observ"
)

// Type enumerates alert kinds.
type Type string

const (
	TypeNewTop          Type = "new_top"
	TypeBuy             Type = "buy"
	TypeSell            Type = "sell"
	TypeProfitMilestone Type = "profit-milestone"
	TypeStopLossSoft    Type = "stop-loss-soft"
	TypeStopLossHard    Type = "stop-loss-hard"
	TypeWarning         Type = "warning"
)

// Alert is the payload handed to every sink.
type Alert struct {
	Type      Type      `json:"type"`
	Symbol    string    `json:"symbol"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink delivers one alert somewhere. Delivery errors are the sink's problem
// to report; the dispatcher only logs them.
type Sink interface {
	Deliver(ctx context.Context, a Alert) error
}

// Enqueuer is the producer-side surface of the dispatcher.
type Enqueuer interface {
	Enqueue(a Alert) bool
}

// Dispatcher fans alerts out to its sinks through a bounded queue consumed by
// a fixed worker pool. Enqueue never blocks the caller: a full queue is a
// counted, logged drop.
type Dispatcher struct {
	queue   chan Alert
	sinks   []Sink
	log     *logging.Entry
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started sync.Once
	workers int
}

func NewDispatcher(queueSize, workers int, log *logging.Entry, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1000
	}
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		queue:   make(chan Alert, queueSize),
		sinks:   sinks,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		workers: workers,
	}
}

// Start launches the worker pool. Safe to call once.
func (d *Dispatcher) Start() {
	d.started.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Enqueue queues an alert for delivery. Returns false when the queue is full;
// callers treat that as a reportable condition, not a silent drop.
func (d *Dispatcher) Enqueue(a Alert) bool {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	select {
	case d.queue <- a:
		observ.SetGauge("alert_queue_depth", float64(len(d.queue)), nil)
		return true
	default:
		observ.IncCounter("alert_queue_dropped_total", map[string]string{"type": string(a.Type)})
		d.log.WithFields(logging.Fields{"type": a.Type, "symbol": a.Symbol}).
			Warn("alert queue full, dropping")
		return false
	}
}

// Close drains nothing: it stops workers after in-flight deliveries finish.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case a := <-d.queue:
			for _, sink := range d.sinks {
				if err := sink.Deliver(d.ctx, a); err != nil {
					observ.IncCounter("alert_delivery_errors_total", map[string]string{"type": string(a.Type)})
					d.log.WithError(err).
						WithFields(logging.Fields{"type": a.Type, "symbol": a.Symbol}).
						Warn("alert delivery failed")
					continue
				}
				observ.IncCounter("alerts_sent_total", map[string]string{"type": string(a.Type)})
			}
		}
	}
}
