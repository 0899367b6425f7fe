package editor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockscheme/pkg/scheme"
)

// chain builds (1 + 2) -> (_ * 3) -> (_ - 4) and returns the operator ids.
func chain(t *testing.T, s *Session) []scheme.BlockID {
	t.Helper()
	add, err := s.AddBlock(scheme.KindAdd, scheme.TypeFloat, scheme.Position{X: 10, Y: 10})
	require.NoError(t, err)
	mul, err := s.AddBlock(scheme.KindMul, scheme.TypeFloat, scheme.Position{X: 100, Y: 10})
	require.NoError(t, err)
	sub, err := s.AddBlock(scheme.KindSub, scheme.TypeFloat, scheme.Position{X: 200, Y: 10})
	require.NoError(t, err)

	require.NoError(t, s.SetValue(add, 1, scheme.SlotInput1))
	require.NoError(t, s.SetValue(add, 2, scheme.SlotInput2))
	require.NoError(t, s.Connect(add, mul, scheme.SlotInput1))
	require.NoError(t, s.SetValue(mul, 3, scheme.SlotInput2))
	require.NoError(t, s.Connect(mul, sub, scheme.SlotInput1))
	require.NoError(t, s.SetValue(sub, 4, scheme.SlotInput2))
	return []scheme.BlockID{add, mul, sub}
}

type fakeRecorder struct {
	runs   int
	failed int
	last   int
}

func (f *fakeRecorder) ObserveRun(blocks, actions int, elapsed time.Duration, err error) {
	f.runs++
	f.last = actions
	if err != nil {
		f.failed++
	}
}

func TestComputeReturnsAllResults(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)

	res := s.Compute()
	require.Empty(t, res.Errors)
	assert.True(t, res.Done)
	assert.Equal(t, []ActionData{
		{Block: ids[0], Value: "3", Raw: 3},
		{Block: ids[1], Value: "9", Raw: 9},
		{Block: ids[2], Value: "5", Raw: 5},
	}, res.Actions)
}

func TestComputeReportsErrors(t *testing.T) {
	s := NewSession()
	_, err := s.AddBlock(scheme.KindAdd, scheme.TypeInt, scheme.Position{})
	require.NoError(t, err)

	res := s.Compute()
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "not connected", res.Errors[0].Code)
	assert.False(t, res.Done)
	assert.Empty(t, res.Actions)
}

func TestComputeReportsCycleBlocks(t *testing.T) {
	s := NewSession()
	a, _ := s.AddBlock(scheme.KindAdd, scheme.TypeFloat, scheme.Position{})
	b, _ := s.AddBlock(scheme.KindAdd, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, s.Connect(a, b, scheme.SlotInput1))
	require.NoError(t, s.Connect(b, a, scheme.SlotInput1))
	require.NoError(t, s.SetValue(a, 1, scheme.SlotInput2))
	require.NoError(t, s.SetValue(b, 1, scheme.SlotInput2))

	res := s.Compute()
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "cycle detected", res.Errors[0].Code)
	assert.Equal(t, []scheme.BlockID{a, b}, res.Errors[0].Blocks)
}

func TestStepReleasesOneActionAtATime(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)

	for i, id := range ids {
		res := s.Step()
		require.Empty(t, res.Errors)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, id, res.Actions[0].Block)

		last := i == len(ids)-1
		assert.Equal(t, last, res.Done)
		assert.Equal(t, !last, s.Stepping())
	}

	// Stepping starts over once finished.
	res := s.Step()
	require.Len(t, res.Actions, 1)
	assert.Equal(t, ids[0], res.Actions[0].Block)
}

func TestFinishReleasesRemainder(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)

	s.Step()
	res := s.Finish()
	assert.True(t, res.Done)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, ids[1], res.Actions[0].Block)
	assert.Equal(t, ids[2], res.Actions[1].Block)
	assert.False(t, s.Stepping())
}

func TestFinishWithoutSteppingComputes(t *testing.T) {
	s := NewSession()
	chain(t, s)

	res := s.Finish()
	assert.True(t, res.Done)
	assert.Len(t, res.Actions, 3)
}

func TestMutationResetsStepping(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)

	s.Step()
	require.True(t, s.Stepping())

	require.NoError(t, s.ClearValue(ids[2], scheme.SlotInput2))
	assert.False(t, s.Stepping())
	require.NoError(t, s.SetValue(ids[2], 10, scheme.SlotInput2))

	// The next step re-evaluates the edited scheme from the start.
	res := s.Step()
	require.Len(t, res.Actions, 1)
	assert.Equal(t, ids[0], res.Actions[0].Block)

	res = s.Finish()
	require.Len(t, res.Actions, 2)
	assert.Equal(t, "-1", res.Actions[1].Value)
}

func TestStopResetsStepping(t *testing.T) {
	s := NewSession()
	chain(t, s)

	s.Step()
	s.Step()
	s.Stop()
	assert.False(t, s.Stepping())

	res := s.Step()
	require.Len(t, res.Actions, 1)
	assert.False(t, res.Done)
}

func TestStepFailureDoesNotStartStepping(t *testing.T) {
	s := NewSession()
	_, err := s.AddBlock(scheme.KindDiv, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, err)

	res := s.Step()
	require.Len(t, res.Errors, 1)
	assert.False(t, s.Stepping())
}

func TestRemoveBlockAndDisconnect(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)

	require.NoError(t, s.Disconnect(ids[1], ids[2], scheme.SlotInput1))
	require.NoError(t, s.RemoveBlock(ids[2]))
	parts, err := s.Parts()
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, scheme.StateEmpty, parts[1].Output.State)

	// Removing the producer frees the consumer's slot.
	require.NoError(t, s.RemoveBlock(ids[0]))
	require.NoError(t, s.SetValue(ids[1], 0, scheme.SlotInput1))
	assert.ErrorIs(t, s.SetValue(ids[1], 0, scheme.SlotInput1), scheme.ErrAlreadyConnected)

	parts, err = s.Parts()
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestSaveAndOpen(t *testing.T) {
	s := NewSession()
	ids := chain(t, s)
	require.NoError(t, s.Move(ids[1], scheme.Position{X: -5, Y: 55}))
	path := filepath.Join(t.TempDir(), "chain.blk")
	require.NoError(t, s.Save(path))

	o := NewSession()
	parts, err := o.Open(path)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.Equal(t, scheme.Position{X: -5, Y: 55}, parts[1].Position)

	res := o.Compute()
	require.Empty(t, res.Errors)
	assert.Equal(t, "5", res.Actions[2].Value)

	// New blocks get ids past the restored ones.
	id, err := o.AddBlock(scheme.KindAdd, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, err)
	assert.Greater(t, id, ids[2])
}

func TestOpenBadFileLeavesSessionEmpty(t *testing.T) {
	s := NewSession()
	chain(t, s)
	path := filepath.Join(t.TempDir(), "bad.blk")
	require.NoError(t, os.WriteFile(path, []byte("Type:1\nID:0\n"), 0o644))

	_, err := s.Open(path)
	require.ErrorIs(t, err, scheme.ErrBadFile)
	assert.Equal(t, 0, s.Scheme().Len())
	assert.Equal(t, "bad file", NewErrorData(err).Code)
}

func TestValidate(t *testing.T) {
	s := NewSession()
	d, err := s.AddBlock(scheme.KindDiv, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, err)
	require.NoError(t, s.SetValue(d, 0, scheme.SlotInput2))

	errs := s.Validate()
	assert.True(t, scheme.HasErrors(errs))
	assert.Len(t, errs, 2)
}

func TestRunScript(t *testing.T) {
	s := NewSession()
	errs := s.RunScript(`
(def a (block :pow))
(literal a 2 1)
(literal a 8 2)
(place a 30 40)
`)
	require.Empty(t, errs)

	res := s.Compute()
	require.Empty(t, res.Errors)
	assert.Equal(t, []ActionData{{Block: 0, Value: "256", Raw: 256}}, res.Actions)

	parts, err := s.Parts()
	require.NoError(t, err)
	assert.Equal(t, scheme.Position{X: 30, Y: 40}, parts[0].Position)
}

func TestRunScriptFailureKeepsScheme(t *testing.T) {
	s := NewSession()
	chain(t, s)

	errs := s.RunScript(`(def a (block :add :flt)) (def b (block :add :int)) (connect a b 1)`)
	require.Len(t, errs, 1)
	assert.Equal(t, "type mismatch", errs[0].Code)
	assert.Equal(t, 7, s.Scheme().Len())

	errs = s.RunScript(`(block :add`)
	require.Len(t, errs, 1)
	assert.Equal(t, "script", errs[0].Code)
}

func TestRecorderObservesEveryRun(t *testing.T) {
	s := NewSession()
	rec := &fakeRecorder{}
	s.SetRecorder(rec)
	chain(t, s)

	s.Compute()
	s.Step()
	s.Step()
	s.Finish()
	require.NoError(t, s.ClearValue(0, scheme.SlotInput1))
	s.Compute()

	assert.Equal(t, 3, rec.runs, "stepping evaluates once")
	assert.Equal(t, 1, rec.failed)
	assert.Equal(t, 0, rec.last)
}

func TestResultDataEncodesNonFiniteValues(t *testing.T) {
	s := NewSession()
	d, err := s.AddBlock(scheme.KindDiv, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, err)
	require.NoError(t, s.SetValue(d, 1, scheme.SlotInput1))
	require.NoError(t, s.SetValue(d, 0, scheme.SlotInput2))

	res := s.Compute()
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "+Inf", res.Actions[0].Value)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actions":[{"block":0,"value":"+Inf"}],"errors":[],"done":true}`, string(data))
}
