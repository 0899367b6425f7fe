// Command blockscheme evaluates, inspects and rewrites saved block schemes.
//
// Usage:
//
//	blockscheme run    [-format text|json] [-metrics FILE] SCHEME
//	blockscheme step   [-format text|json] [-metrics FILE] SCHEME
//	blockscheme parts  [-format text|json] SCHEME
//	blockscheme check  [-format text|json] SCHEME
//	blockscheme script [-format text|json] [-o SCHEME] SCRIPT
//	blockscheme fmt    [-o SCHEME] SCHEME
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: blockscheme <run|step|parts|check|script|fmt> [flags] FILE")
		os.Exit(2)
	}

	cfg, err := LoadConfig(os.Args[1], os.Args[2:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Printf("blockscheme: %v", err)
		os.Exit(2)
	}

	if err := execute(cfg, os.Stdout); err != nil {
		if !errors.Is(err, errFailed) {
			log.Printf("blockscheme %s: %v", cfg.Command, err)
		}
		os.Exit(1)
	}
}
