package queue

import (
	"context"
	"encoding/binary"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/clientcheck/trust-system/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher routes AI assessment results to a fixed set of workers using
// consistent hashing on the client id, so recomputes for one client never
// reorder while different clients proceed in parallel.
type Dispatcher struct {
	workers []chan ports.AssessmentInput
	service ports.TrustService
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.TrustService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.AssessmentInput, numWorkers),
		service: service,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.AssessmentInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends an assessment to the worker responsible for its client.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Enqueue(in ports.AssessmentInput) {
	d.workers[d.shardIndex(in.ClientID)] <- in
}

// EnqueueBatch enqueues multiple assessments preserving per-client ordering.
func (d *Dispatcher) EnqueueBatch(batch []ports.AssessmentInput) {
	for _, in := range batch {
		d.Enqueue(in)
	}
}

// shardIndex maps a client id deterministically to a worker index.
func (d *Dispatcher) shardIndex(clientID int64) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(clientID))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.AssessmentInput) {
	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-ch:
			if !ok {
				return
			}
			if _, err := d.service.IngestAssessment(ctx, in); err != nil {
				d.log.Error().Err(err).
					Int64("client_id", in.ClientID).
					Int("worker_id", id).
					Msg("assessment ingestion failed")
			}
		}
	}
}
