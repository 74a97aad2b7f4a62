package eval

import (
	"sync"
	"sync/atomic"

	"github.com/czcorpus/attrisim/eval/zero"
)

type liveModel struct {
	model  MLModel
	status Status
}

// ModelHandle owns the single live model. Readers get the current
// model without any locking; writers are serialized and the new
// model becomes visible only once it is completely built.
type ModelHandle struct {
	current atomic.Pointer[liveModel]
	writer  sync.Mutex
}

// NewModelHandle creates a handle holding a zero model until
// something is installed.
func NewModelHandle() *ModelHandle {
	h := &ModelHandle{}
	h.current.Store(&liveModel{
		model: &zero.Model{Reason: "not initialized"},
		status: Status{
			Source:  SourceNone,
			Message: "model not initialized",
		},
	})
	return h
}

// Current returns the live model. The returned value must be
// treated as read-only.
func (h *ModelHandle) Current() MLModel {
	return h.current.Load().model
}

func (h *ModelHandle) Status() Status {
	return h.current.Load().status
}

// Snapshot returns the live model together with its status
// as one consistent pair.
func (h *ModelHandle) Snapshot() (MLModel, Status) {
	lm := h.current.Load()
	return lm.model, lm.status
}

// Update runs fn while holding the writer lock and installs its
// result. If fn fails, the current model stays live.
func (h *ModelHandle) Update(fn func(current MLModel) (MLModel, Status, error)) (Status, error) {
	h.writer.Lock()
	defer h.writer.Unlock()
	model, status, err := fn(h.Current())
	if err != nil {
		return status, err
	}
	if model == nil {
		model = &zero.Model{Reason: status.Message}
	}
	h.current.Store(&liveModel{model: model, status: status})
	return status, nil
}
