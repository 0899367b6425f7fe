package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultFormat = "text"
)

var commands = []string{"run", "step", "parts", "check", "script", "fmt"}

type Config struct {
	Command     string
	InputPath   string
	OutputPath  string
	MetricsPath string
	Format      string
}

func LoadConfig(command string, args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	if !knownCommand(command) {
		return Config{}, fmt.Errorf("unknown command %q (want one of %s)", command, strings.Join(commands, ", "))
	}

	format := envOrDefault("BLOCKSCHEME_FORMAT", defaultFormat)
	metricsPath := os.Getenv("BLOCKSCHEME_METRICS")

	flagSet := flag.NewFlagSet("blockscheme "+command, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagFormat := flagSet.String("format", format, "output format: text|json")
	flagMetrics := flagSet.String("metrics", metricsPath, "write prometheus metrics to this file on exit")
	flagOutput := flagSet.String("o", "", "output file (script, fmt)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	if flagSet.NArg() != 1 {
		return Config{}, fmt.Errorf("%s requires exactly one input file, got %d", command, flagSet.NArg())
	}

	config := Config{
		Command:     command,
		InputPath:   resolvePath(flagSet.Arg(0), cwd),
		OutputPath:  resolvePath(*flagOutput, cwd),
		MetricsPath: resolvePath(*flagMetrics, cwd),
		Format:      strings.ToLower(strings.TrimSpace(*flagFormat)),
	}

	if config.Format != "text" && config.Format != "json" {
		return Config{}, fmt.Errorf("unsupported format: %s", config.Format)
	}
	if config.OutputPath != "" && command != "script" && command != "fmt" {
		return Config{}, fmt.Errorf("-o is only valid for script and fmt")
	}
	if command == "fmt" && config.OutputPath == "" {
		config.OutputPath = config.InputPath
	}

	return config, nil
}

func knownCommand(command string) bool {
	for _, c := range commands {
		if c == command {
			return true
		}
	}
	return false
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
