package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/instancegraph/pkg/scene"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs longer than the engine's
	// timeout. The interpreter goroutine is abandoned, not killed.
	ErrTimeout = errors.New("engine: evaluation timed out")

	// ErrSuperseded is returned to a caller whose evaluation finished after
	// a newer Evaluate call started.
	ErrSuperseded = errors.New("engine: evaluation superseded by newer request")
)

type evalResult struct {
	doc    *scene.Document
	errors []EvalError
	err    error
}

// await blocks for the result of evaluation gen. Results of stale
// generations are dropped.
func (e *Engine) await(ch <-chan evalResult, gen uint64) (*scene.Document, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !e.current(gen) {
			return nil, nil, ErrSuperseded
		}
		return res.doc, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.generation
}
