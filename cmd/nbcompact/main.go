package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nextbus-tracker/internal/config"
	"nextbus-tracker/internal/record"
	"nextbus-tracker/internal/track"
)

// nbcompact re-compacts an existing short-form observation log: it feeds the
// decoded lines through the same pipeline the live tracker uses and writes
// the compacted records. Input is a file argument or stdin.
func main() {
	cfg, err := config.LoadReplay()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in := io.Reader(os.Stdin)
	if len(os.Args) > 1 && os.Args[1] != "-" {
		f, err := os.Open(os.Args[1])
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	out := os.Stdout
	if cfg.Output != "-" && cfg.Output != "" {
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("open output: %v", err)
		}
		defer f.Close()
		out = f
	}
	writer := record.NewWriter(out, record.Format(cfg.Format), cfg.Detail)

	pipe := track.NewPipeline(track.NewCompactor(), track.NewWindowManager(cfg.WindowLocation), nil)

	emit := func(recs []track.Observation) {
		for _, rec := range recs {
			if err := writer.Write(rec); err != nil {
				log.Fatalf("write output: %v", err)
			}
		}
	}

	lineNo := 0
	parseErrs := 0
	interrupted := false
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		// A delivered interrupt still drains everything pending below.
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		obs, err := record.DecodeLine(line, lineNo)
		if err != nil {
			var pe *record.ParseError
			if errors.As(err, &pe) {
				parseErrs++
				log.Printf("skipping %v", pe)
				continue
			}
			log.Fatalf("decode: %v", err)
		}
		emit(pipe.Feed(obs))
	}
	if err := scanner.Err(); err != nil && !interrupted {
		log.Printf("read input: %v", err)
	}

	emit(pipe.Drain())
	if err := writer.Flush(); err != nil {
		log.Fatalf("flush output: %v", err)
	}
	if parseErrs > 0 {
		log.Printf("skipped %d undecodable lines of %d", parseErrs, lineNo)
	}
}
