package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockscheme/pkg/editor"
	"github.com/chazu/blockscheme/pkg/scheme"
)

const chainScript = `
;; (2 + 3) * 4
(def sum (block :add))
(def prod (block :mul))
(literal sum 2 1)
(literal sum 3 2)
(connect sum prod 1)
(literal prod 4 2)
(place prod 80 0)
`

// writeChain saves the chain scheme and returns its path.
func writeChain(t *testing.T, dir string) string {
	t.Helper()
	s := scheme.New()
	sum, err := s.AddBlock(scheme.KindAdd, scheme.TypeFloat)
	require.NoError(t, err)
	prod, err := s.AddBlock(scheme.KindMul, scheme.TypeFloat)
	require.NoError(t, err)
	require.NoError(t, s.SetLiteral(sum, 2, scheme.SlotInput1))
	require.NoError(t, s.SetLiteral(sum, 3, scheme.SlotInput2))
	require.NoError(t, s.Connect(sum, prod, scheme.SlotInput1))
	require.NoError(t, s.SetLiteral(prod, 4, scheme.SlotInput2))

	path := filepath.Join(dir, "chain.blk")
	require.NoError(t, s.SaveFile(path, map[scheme.BlockID]scheme.Position{prod: {X: 80}}))
	return path
}

func TestRunCommand(t *testing.T) {
	path := writeChain(t, t.TempDir())
	var out bytes.Buffer

	require.NoError(t, execute(Config{Command: "run", InputPath: path, Format: "text"}, &out))
	assert.Equal(t, "block 0 = 5\nblock 1 = 20\n", out.String())
}

func TestRunCommandJSON(t *testing.T) {
	path := writeChain(t, t.TempDir())
	var out bytes.Buffer

	require.NoError(t, execute(Config{Command: "run", InputPath: path, Format: "json"}, &out))
	var res editor.ResultData
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.True(t, res.Done)
	require.Len(t, res.Actions, 2)
	assert.Equal(t, "20", res.Actions[1].Value)
}

func TestStepCommand(t *testing.T) {
	path := writeChain(t, t.TempDir())
	var out bytes.Buffer

	require.NoError(t, execute(Config{Command: "step", InputPath: path, Format: "text"}, &out))
	assert.Equal(t, "block 0 = 5\nblock 1 = 20\n", out.String())
}

func TestRunCommandReportsEvaluationErrors(t *testing.T) {
	dir := t.TempDir()
	s := scheme.New()
	_, err := s.AddBlock(scheme.KindAdd, scheme.TypeFloat)
	require.NoError(t, err)
	path := filepath.Join(dir, "open.blk")
	require.NoError(t, s.SaveFile(path, nil))

	var out bytes.Buffer
	err = execute(Config{Command: "run", InputPath: path, Format: "text"}, &out)
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out.String(), "error [not connected]")
}

func TestPartsCommand(t *testing.T) {
	path := writeChain(t, t.TempDir())
	var out bytes.Buffer

	require.NoError(t, execute(Config{Command: "parts", InputPath: path, Format: "text"}, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0 add FLT at (0,0): 2, 3 -> block 1 input1", lines[0])
	assert.Equal(t, "1 mul FLT at (80,0): block 0, 4 -> nothing", lines[1])
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeChain(t, dir)
	var out bytes.Buffer

	require.NoError(t, execute(Config{Command: "check", InputPath: path, Format: "text"}, &out))
	assert.Contains(t, out.String(), "ok (5 blocks)")

	mismatch := filepath.Join(dir, "mismatch.blk")
	doc := strings.Join([]string{
		"Type:1", "ID:0", "Position X:0", "Position Y:0", "Type name:FLT",
		"Input value:None", "Input 1 ID:None", "Input 2 ID:None", "Output ID:0",
		"Type:1", "ID:1", "Position X:0", "Position Y:0", "Type name:HEX",
		"Input value:None", "Input 1 ID:0", "Input 2 ID:None", "Output ID:None",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(mismatch, []byte(doc), 0o644))

	out.Reset()
	err := execute(Config{Command: "check", InputPath: mismatch, Format: "text"}, &out)
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out.String(), "HEX")
}

func TestScriptCommand(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "chain.lisp")
	require.NoError(t, os.WriteFile(script, []byte(chainScript), 0o644))
	saved := filepath.Join(dir, "out.blk")

	var out bytes.Buffer
	require.NoError(t, execute(Config{Command: "script", InputPath: script, OutputPath: saved, Format: "text"}, &out))
	assert.Equal(t, "block 0 = 5\nblock 1 = 20\n", out.String())

	parts, err := scheme.New().LoadFile(saved)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, scheme.Position{X: 80}, parts[1].Position)
}

func TestScriptCommandReportsErrors(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bad.lisp")
	require.NoError(t, os.WriteFile(script, []byte(`(connect 0 1 1)`), 0o644))

	var out bytes.Buffer
	err := execute(Config{Command: "script", InputPath: script, Format: "text"}, &out)
	require.ErrorIs(t, err, errFailed)
	assert.Contains(t, out.String(), "error [not found]")
}

func TestFmtCommandAddsSeparators(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, "legacy.blk")
	doc := strings.Join([]string{
		"Type:1", "ID:0", "Position X:3", "Position Y:4", "Type name:INT",
		"Input value:None", "Input 1 ID:0", "Input 2 ID:1", "Output ID:None",
		"Type:0", "ID:1", "Position X:0", "Position Y:0", "Type name:TN_INPUT",
		"Input value:2.000000", "Input 1 ID:None", "Input 2 ID:None", "Output ID:0",
		"Type:0", "ID:2", "Position X:0", "Position Y:0", "Type name:TN_INPUT",
		"Input value:5.500000", "Input 1 ID:None", "Input 2 ID:None", "Output ID:1",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(legacy, []byte(doc), 0o644))

	require.NoError(t, execute(Config{Command: "fmt", InputPath: legacy, OutputPath: legacy, Format: "text"}, &bytes.Buffer{}))

	data, err := os.ReadFile(legacy)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Output ID:None\n\nType:0\n")
	assert.Contains(t, text, "Input value:2\n")
	assert.Contains(t, text, "Input value:5.5\n")

	var out bytes.Buffer
	require.NoError(t, execute(Config{Command: "run", InputPath: legacy, Format: "text"}, &out))
	assert.Equal(t, "block 0 = 7\n", out.String())
}

func TestMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	path := writeChain(t, dir)
	metricsPath := filepath.Join(dir, "blockscheme.prom")

	require.NoError(t, execute(Config{Command: "run", InputPath: path, Format: "text", MetricsPath: metricsPath}, &bytes.Buffer{}))

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `blockscheme_runs_total{outcome="ok"} 1`)
}

func TestOpenFailure(t *testing.T) {
	err := execute(Config{Command: "run", InputPath: filepath.Join(t.TempDir(), "missing.blk"), Format: "text"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, scheme.ErrIO)
}
