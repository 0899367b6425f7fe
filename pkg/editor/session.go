// Package editor is the facade an interactive block editor talks to. A
// Session owns one scheme and the block positions, converts results and
// errors into JSON-shaped values, and buffers evaluation results so they
// can be released one step at a time.
package editor

import (
	"fmt"
	"log"
	"time"

	"github.com/chazu/blockscheme/pkg/engine"
	"github.com/chazu/blockscheme/pkg/scheme"
)

// Recorder observes every evaluation a Session performs.
type Recorder interface {
	ObserveRun(blocks, actions int, elapsed time.Duration, err error)
}

// Session is not safe for concurrent use.
type Session struct {
	scheme   *scheme.Scheme
	engine   *engine.Engine
	recorder Recorder

	// Stepping state. pending holds actions not yet released.
	stepping bool
	pending  []scheme.Action
}

// NewSession creates a Session with an empty scheme.
func NewSession() *Session {
	return &Session{
		scheme: scheme.New(),
		engine: engine.NewEngine(),
	}
}

// SetRecorder installs r to observe evaluations. A nil r disables recording.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// Scheme returns the live scheme.
func (s *Session) Scheme() *scheme.Scheme {
	return s.scheme
}

// Stepping reports whether a step-by-step evaluation is in progress.
func (s *Session) Stepping() bool {
	return s.stepping
}

// ---------------------------------------------------------------------------
// Mutations. Each one abandons any evaluation in progress.
// ---------------------------------------------------------------------------

// AddBlock creates an operator block at pos.
func (s *Session) AddBlock(kind scheme.Kind, tn scheme.TypeName, pos scheme.Position) (scheme.BlockID, error) {
	s.Stop()
	id, err := s.scheme.AddBlock(kind, tn)
	if err != nil {
		return 0, err
	}
	if err := s.scheme.SetPosition(id, pos); err != nil {
		return 0, err
	}
	return id, nil
}

// RemoveBlock deletes a block and everything that only existed to feed it.
func (s *Session) RemoveBlock(id scheme.BlockID) error {
	s.Stop()
	return s.scheme.RemoveBlock(id)
}

// Move records a new position for a block.
func (s *Session) Move(id scheme.BlockID, pos scheme.Position) error {
	return s.scheme.SetPosition(id, pos)
}

// Connect wires src into an input slot of dst.
func (s *Session) Connect(src, dst scheme.BlockID, slot scheme.Slot) error {
	s.Stop()
	return s.scheme.Connect(src, dst, slot)
}

// Disconnect removes the connection from src into an input slot of dst.
func (s *Session) Disconnect(src, dst scheme.BlockID, slot scheme.Slot) error {
	s.Stop()
	return s.scheme.Disconnect(src, dst, slot)
}

// SetValue attaches a constant to an input slot.
func (s *Session) SetValue(id scheme.BlockID, value float64, slot scheme.Slot) error {
	s.Stop()
	return s.scheme.SetLiteral(id, value, slot)
}

// ClearValue removes the constant attached to an input slot.
func (s *Session) ClearValue(id scheme.BlockID, slot scheme.Slot) error {
	s.Stop()
	return s.scheme.ClearLiteral(id, slot)
}

// Clear empties the session.
func (s *Session) Clear() {
	s.Stop()
	s.scheme.Clear()
}

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Compute evaluates the scheme and returns every result at once.
func (s *Session) Compute() ResultData {
	s.Stop()
	result := emptyResult()
	actions, err := s.run()
	if err != nil {
		result.Errors = append(result.Errors, NewErrorData(err))
		return result
	}
	result.Actions = actionData(actions)
	result.Done = true
	return result
}

// Step releases one result. The first call evaluates the scheme; later
// calls release the buffered results in order. The result with Done set
// ends stepping.
func (s *Session) Step() ResultData {
	result := emptyResult()
	if !s.stepping {
		actions, err := s.run()
		if err != nil {
			result.Errors = append(result.Errors, NewErrorData(err))
			return result
		}
		s.stepping = true
		s.pending = actions
	}

	if len(s.pending) > 0 {
		result.Actions = append(result.Actions, newActionData(s.pending[0]))
		s.pending = s.pending[1:]
	}
	if len(s.pending) == 0 {
		s.Stop()
		result.Done = true
	}
	return result
}

// Finish releases every result not yet stepped through. Without an
// evaluation in progress it behaves like Compute.
func (s *Session) Finish() ResultData {
	if !s.stepping {
		return s.Compute()
	}
	result := emptyResult()
	result.Actions = actionData(s.pending)
	result.Done = true
	s.Stop()
	return result
}

// Stop abandons any step-by-step evaluation in progress.
func (s *Session) Stop() {
	s.stepping = false
	s.pending = nil
}

func (s *Session) run() ([]scheme.Action, error) {
	start := time.Now()
	actions, err := s.scheme.Run()
	if s.recorder != nil {
		s.recorder.ObserveRun(s.scheme.Len(), len(actions), time.Since(start), err)
	}
	if code, ok := scheme.CodeOf(err); ok && code == scheme.CodeInternal {
		log.Printf("Run internal error: %v", err)
	}
	return actions, err
}

// ---------------------------------------------------------------------------
// Inspection
// ---------------------------------------------------------------------------

// Parts describes every operator block for rebuilding editor widgets.
func (s *Session) Parts() ([]scheme.Part, error) {
	return s.scheme.Parts()
}

// Validate reports structural problems without evaluating.
func (s *Session) Validate() []scheme.ValidationError {
	return s.scheme.Validate()
}

// ---------------------------------------------------------------------------
// Files and scripts
// ---------------------------------------------------------------------------

// Save writes the scheme to path.
func (s *Session) Save(path string) error {
	return s.scheme.SaveFile(path, nil)
}

// Open replaces the scheme with the one saved at path and returns its parts.
// On failure the session is left empty.
func (s *Session) Open(path string) ([]scheme.Part, error) {
	s.Stop()
	parts, err := s.scheme.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.scheme.Restore(parts); err != nil {
		return nil, fmt.Errorf("rebuild %s: %w", path, err)
	}
	return parts, nil
}

// RunScript evaluates a scheme script and, when it succeeds, replaces the
// session's scheme with the one the script built. On failure the session
// is unchanged.
func (s *Session) RunScript(source string) []ErrorData {
	errs := []ErrorData{}

	res, evalErrs, err := s.engine.Evaluate(source)
	if err != nil {
		log.Printf("Evaluate fatal error: %v", err)
		return append(errs, ErrorData{Code: "fatal", Message: err.Error()})
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			errs = append(errs, NewErrorData(e))
		}
		return errs
	}

	s.Stop()
	s.scheme = res.Scheme
	return errs
}
