package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// jobSteps is how many progress ticks a precompute job emits before
// finishing.
const jobSteps = 8

// job is one background precompute. The cancel channel is closed at most
// once; cancellation events are emitted by cancelJobsLocked, which also
// removes the job from the engine map so the worker exits silently.
type job struct {
	id     string
	kind   string
	page   int
	cancel chan struct{}
	once   sync.Once
}

func (j *job) stop() {
	j.once.Do(func() { close(j.cancel) })
}

// PrecomputePage starts a simulated speech synthesis pass over the current
// page and returns the job id. Progress and the terminal phase arrive on
// the job channel.
func (e *Engine) PrecomputePage(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.doc == nil {
		return "", protocol.Errf(protocol.CodeConflict, "no document open")
	}
	j := &job{
		id:     uuid.NewString(),
		kind:   protocol.JobPrecompute,
		page:   e.doc.page,
		cancel: make(chan struct{}),
	}
	e.jobs[j.id] = j
	e.emitLocked(protocol.ChannelJob, protocol.JobEvent{
		JobID: j.id,
		Kind:  j.kind,
		Phase: protocol.PhaseStarted,
		Page:  j.page,
	})
	go e.runJob(j)
	return j.id, nil
}

func (e *Engine) runJob(j *job) {
	for step := 1; step <= jobSteps; step++ {
		select {
		case <-j.cancel:
			return
		case <-e.closed:
			return
		case <-time.After(e.opts.JobStep):
		}
		e.mu.Lock()
		if _, live := e.jobs[j.id]; !live {
			e.mu.Unlock()
			return
		}
		phase := protocol.PhaseStarted
		if step == jobSteps {
			phase = protocol.PhaseFinished
			delete(e.jobs, j.id)
		}
		e.emitLocked(protocol.ChannelJob, protocol.JobEvent{
			JobID:   j.id,
			Kind:    j.kind,
			Phase:   phase,
			Page:    j.page,
			Percent: 100 * float64(step) / jobSteps,
		})
		e.mu.Unlock()
	}
}

// cancelJobsLocked tears down every live job, emitting one cancelled event
// per job. Workers notice the closed cancel channel, find their map entry
// gone, and exit without emitting anything themselves.
func (e *Engine) cancelJobsLocked(reason string) {
	for id, j := range e.jobs {
		j.stop()
		delete(e.jobs, id)
		e.emitLocked(protocol.ChannelJob, protocol.JobEvent{
			JobID:   j.id,
			Kind:    j.kind,
			Phase:   protocol.PhaseCancelled,
			Page:    j.page,
			Message: reason,
		})
	}
}
