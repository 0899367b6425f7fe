package editor

import (
	"errors"
	"strconv"

	"github.com/chazu/blockscheme/pkg/engine"
	"github.com/chazu/blockscheme/pkg/scheme"
)

// ActionData is the JSON-serializable form of one evaluation result.
// Value is rendered as text so that infinities and NaN survive encoding.
type ActionData struct {
	Block scheme.BlockID `json:"block"`
	Value string         `json:"value"`
	Raw   float64        `json:"-"`
}

// ErrorData is a JSON-serializable error for the editor.
type ErrorData struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Line    int              `json:"line,omitempty"`
	Blocks  []scheme.BlockID `json:"blocks,omitempty"`
}

// ResultData is returned by Compute, Step and Finish.
type ResultData struct {
	Actions []ActionData `json:"actions"`
	Errors  []ErrorData  `json:"errors"`
	// Done is false while stepping still holds unreleased actions.
	Done bool `json:"done"`
}

func newActionData(a scheme.Action) ActionData {
	return ActionData{
		Block: a.Block,
		Value: strconv.FormatFloat(a.Value, 'g', -1, 64),
		Raw:   a.Value,
	}
}

func actionData(actions []scheme.Action) []ActionData {
	out := make([]ActionData, 0, len(actions))
	for _, a := range actions {
		out = append(out, newActionData(a))
	}
	return out
}

// NewErrorData converts an error from the scheme or engine packages.
func NewErrorData(err error) ErrorData {
	d := ErrorData{Code: "error", Message: err.Error()}
	if code, ok := scheme.CodeOf(err); ok {
		d.Code = code.String()
	}
	var ce *scheme.CycleError
	if errors.As(err, &ce) {
		d.Blocks = ce.Blocks
	}
	var ee engine.EvalError
	if errors.As(err, &ee) {
		d.Line = ee.Line
		if ee.Err == nil {
			d.Code = "script"
		}
	}
	return d
}

func emptyResult() ResultData {
	return ResultData{
		Actions: []ActionData{},
		Errors:  []ErrorData{},
	}
}
