package scheme

import "fmt"

// Action records the value one block produced during a run.
type Action struct {
	Block BlockID `json:"block"`
	Value float64 `json:"value"`
}

func (a Action) String() string {
	return fmt.Sprintf("block %d = %g", a.Block, a.Value)
}
