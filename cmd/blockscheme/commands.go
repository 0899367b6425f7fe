package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/blockscheme/pkg/editor"
	"github.com/chazu/blockscheme/pkg/metrics"
	"github.com/chazu/blockscheme/pkg/scheme"
)

// errFailed marks a command whose findings were already printed.
var errFailed = errors.New("command reported errors")

func execute(cfg Config, w io.Writer) error {
	s := editor.NewSession()
	var m *metrics.Metrics
	if cfg.MetricsPath != "" {
		m = metrics.New()
		s.SetRecorder(m)
	}

	var err error
	switch cfg.Command {
	case "run":
		err = runCommand(cfg, s, w)
	case "step":
		err = stepCommand(cfg, s, w)
	case "parts":
		err = partsCommand(cfg, s, w)
	case "check":
		err = checkCommand(cfg, w)
	case "script":
		err = scriptCommand(cfg, s, w)
	case "fmt":
		err = fmtCommand(cfg)
	default:
		err = fmt.Errorf("unknown command %q", cfg.Command)
	}

	if m != nil {
		if werr := m.WriteTextfile(cfg.MetricsPath); werr != nil {
			return errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
	}
	return err
}

func runCommand(cfg Config, s *editor.Session, w io.Writer) error {
	if _, err := s.Open(cfg.InputPath); err != nil {
		return err
	}
	return printResult(cfg, w, s.Compute())
}

func stepCommand(cfg Config, s *editor.Session, w io.Writer) error {
	if _, err := s.Open(cfg.InputPath); err != nil {
		return err
	}
	for {
		res := s.Step()
		if err := printResult(cfg, w, res); err != nil {
			return err
		}
		if res.Done {
			return nil
		}
	}
}

func partsCommand(cfg Config, s *editor.Session, w io.Writer) error {
	parts, err := s.Open(cfg.InputPath)
	if err != nil {
		return err
	}
	if cfg.Format == "json" {
		return writeJSON(w, parts)
	}
	for _, p := range parts {
		fmt.Fprintf(w, "%d %s %s at (%d,%d): %s, %s -> %s\n",
			p.ID, p.Kind, p.TypeName, p.Position.X, p.Position.Y,
			describeInput(p.Inputs[0]), describeInput(p.Inputs[1]), describeOutput(p.Output))
	}
	return nil
}

func describeInput(in scheme.InputPart) string {
	switch in.State {
	case scheme.StateValue:
		return fmt.Sprintf("%g", in.Value)
	case scheme.StateConnection:
		return fmt.Sprintf("block %d", in.Block)
	default:
		return "empty"
	}
}

func describeOutput(out scheme.OutputPart) string {
	if out.State != scheme.StateConnection {
		return "nothing"
	}
	return fmt.Sprintf("block %d %s", out.Block, out.Slot)
}

// checkCommand decodes without rebuilding, so problems that Restore would
// reject (such as type mismatches) are still reported.
func checkCommand(cfg Config, w io.Writer) error {
	s, err := scheme.DecodeFile(cfg.InputPath)
	if err != nil {
		return err
	}
	findings := s.Validate()
	if cfg.Format == "json" {
		if err := writeJSON(w, findings); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			fmt.Fprintln(w, f.Error())
		}
		if len(findings) == 0 {
			fmt.Fprintf(w, "%s: ok (%d blocks)\n", cfg.InputPath, s.Len())
		}
	}
	if scheme.HasErrors(findings) {
		return errFailed
	}
	return nil
}

func scriptCommand(cfg Config, s *editor.Session, w io.Writer) error {
	source, err := os.ReadFile(cfg.InputPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if errs := s.RunScript(string(source)); len(errs) > 0 {
		res := editor.ResultData{Actions: []editor.ActionData{}, Errors: errs}
		if err := printResult(cfg, w, res); err != nil {
			return err
		}
		return errFailed
	}
	if cfg.OutputPath != "" {
		if err := s.Save(cfg.OutputPath); err != nil {
			return err
		}
	}
	return printResult(cfg, w, s.Compute())
}

// fmtCommand rewrites a file in the current format, keeping block and port
// ids as they are.
func fmtCommand(cfg Config) error {
	s, err := scheme.DecodeFile(cfg.InputPath)
	if err != nil {
		return err
	}
	return s.SaveFile(cfg.OutputPath, nil)
}

func printResult(cfg Config, w io.Writer, res editor.ResultData) error {
	if cfg.Format == "json" {
		if err := writeJSON(w, res); err != nil {
			return err
		}
	} else {
		for _, a := range res.Actions {
			fmt.Fprintf(w, "block %d = %s\n", a.Block, a.Value)
		}
		for _, e := range res.Errors {
			fmt.Fprintf(w, "error [%s]: %s\n", e.Code, e.Message)
		}
	}
	if len(res.Errors) > 0 {
		return errFailed
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
