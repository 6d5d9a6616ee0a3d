// Package main is the entry point for the piecebuf command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/piecebuf/internal/app"
	"github.com/dshills/piecebuf/internal/engine/buffer"
	"github.com/dshills/piecebuf/internal/project/filestore"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type cliOptions struct {
	app    app.Options
	script string
	line   int
	span   string
	stats  bool
	save   bool
	watch  bool
	files  []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(opts.app)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx, true); err != nil {
			fmt.Fprintf(os.Stderr, "Error: shutdown: %v\n", err)
		}
	}()

	docs, err := application.Open(ctx, opts.files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	for _, doc := range docs {
		if err := process(ctx, application, doc, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", doc.Path(), err)
			return 1
		}
	}

	if !opts.watch {
		return 0
	}

	if err := application.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	<-ctx.Done()
	return 0
}

// process runs the script and then prints what was asked for.
func process(ctx context.Context, application *app.Application, doc *filestore.Document, opts cliOptions) error {
	if opts.script != "" {
		if err := application.RunScript(ctx, doc, app.Script{Path: opts.script}); err != nil {
			return err
		}
	}
	if opts.save && doc.IsDirty() {
		if err := application.Store().Save(ctx, doc.Path()); err != nil {
			return err
		}
	}

	switch {
	case opts.stats:
		s := doc.Buffer.Stats()
		fmt.Printf("%s: %d bytes, %d lines, %d pieces, height %d, %s\n",
			doc.Path(), doc.Buffer.Len(), doc.Buffer.LineCount(), s.Pieces, s.Height, doc.Encoding())
	case opts.line > 0:
		text, err := doc.Buffer.LineText(opts.line)
		if err != nil {
			return err
		}
		fmt.Println(text)
	case opts.span != "":
		r, err := parseRange(opts.span)
		if err != nil {
			return err
		}
		text, err := doc.Buffer.ContentInRange(r)
		if err != nil {
			return err
		}
		fmt.Print(text)
	case opts.script == "" && !opts.watch:
		if _, err := doc.Buffer.WriteTo(os.Stdout); err != nil {
			return err
		}
	}
	return nil
}

// parseRange parses "line:col-line:col".
func parseRange(s string) (buffer.LineRange, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return buffer.LineRange{}, fmt.Errorf("invalid range %q: want line:col-line:col", s)
	}
	start, err := parsePosition(from)
	if err != nil {
		return buffer.LineRange{}, err
	}
	end, err := parsePosition(to)
	if err != nil {
		return buffer.LineRange{}, err
	}
	return buffer.LineRange{Start: start, End: end}, nil
}

func parsePosition(s string) (buffer.Position, error) {
	l, c, ok := strings.Cut(s, ":")
	if !ok {
		return buffer.Position{}, fmt.Errorf("invalid position %q: want line:col", s)
	}
	line, err1 := strconv.Atoi(l)
	col, err2 := strconv.Atoi(c)
	if err := errors.Join(err1, err2); err != nil {
		return buffer.Position{}, fmt.Errorf("invalid position %q: %w", s, err)
	}
	return buffer.Position{Line: line, Column: col}, nil
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool

	flag.StringVar(&opts.app.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.app.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.BoolVar(&opts.app.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.script, "script", "", "Lua script to run against each file")
	flag.IntVar(&opts.line, "line", 0, "Print a single line (1-based)")
	flag.StringVar(&opts.span, "range", "", "Print a range, as line:col-line:col")
	flag.BoolVar(&opts.stats, "stats", false, "Print buffer statistics")
	flag.BoolVar(&opts.save, "w", false, "Save modified files")
	flag.BoolVar(&opts.watch, "watch", false, "Keep running and reload files changed on disk")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "piecebuf - piece table text buffers\n\n")
		fmt.Fprintf(os.Stderr, "Usage: piecebuf [options] files...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  piecebuf -line 10 main.go           Print line 10\n")
		fmt.Fprintf(os.Stderr, "  piecebuf -range 2:1-4:1 main.go     Print lines 2 and 3\n")
		fmt.Fprintf(os.Stderr, "  piecebuf -script fix.lua -w *.txt   Edit files with a script\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("piecebuf %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	opts.files = flag.Args()
	if len(opts.files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	return opts
}
