package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/jscalical/internal/config"
	"github.com/sonroyaalmerol/jscalical/internal/convert"
	"github.com/sonroyaalmerol/jscalical/internal/convertapi"
	"github.com/sonroyaalmerol/jscalical/internal/logging"
	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	logger = logger.With().Str("component", "cmd").Logger()

	switch os.Args[1] {
	case "ical2jscal":
		runICal2JSCal(cfg, logger, os.Args[2:])
	case "jscal2ical":
		runJSCal2ICal(cfg, logger, os.Args[2:])
	case "roundtrip":
		runRoundtrip(cfg, logger, os.Args[2:])
	case "serve":
		runServe(cfg, logger)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: jscalical <ical2jscal|jscal2ical|roundtrip|serve> [-in file] [-out file] [-props a,b,c]")
}

// runServe starts the HTTP surface and blocks until SIGINT/SIGTERM.
func runServe(cfg *config.Config, logger zerolog.Logger) {
	srv := convertapi.NewServer(cfg, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped with error")
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("bye")
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		if err == nil {
			_, err = os.Stdout.Write([]byte("\n"))
		}
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// runICal2JSCal implements the to_jmap direction: parse a VCALENDAR and
// print the JSCalendar event of its first (by document order) UID group.
func runICal2JSCal(cfg *config.Config, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("ical2jscal", flag.ExitOnError)
	in := fs.String("in", "-", "input .ics path, - for stdin")
	out := fs.String("out", "-", "output .json path, - for stdout")
	props := fs.String("props", "", "comma-separated property filter (empty = all)")
	fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}
	if int64(len(data)) > cfg.MaxBodyBytes {
		fmt.Fprintf(os.Stderr, "input exceeds max body size (%d bytes)\n", cfg.MaxBodyBytes)
		os.Exit(1)
	}

	cal, err := ical.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode ics: %v\n", err)
		os.Exit(1)
	}

	tz := tzcache.New()
	result, err := convert.AsJeventString(tz, cal, splitProps(*props), cfg.PrettyJSON, logger)
	if err != nil {
		logger.Error().Err(err).Msg("to_jmap failed")
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		os.Exit(1)
	}
	if err := writeOutput(*out, result); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
}

func runJSCal2ICal(cfg *config.Config, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("jscal2ical", flag.ExitOnError)
	in := fs.String("in", "-", "input .json path, - for stdin")
	out := fs.String("out", "-", "output .ics path, - for stdout")
	fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}
	if int64(len(data)) > cfg.MaxBodyBytes {
		fmt.Fprintf(os.Stderr, "input exceeds max body size (%d bytes)\n", cfg.MaxBodyBytes)
		os.Exit(1)
	}

	tz := tzcache.New()
	cal, err := convert.FromJeventString(tz, data, cfg.ICS.BuildProdID(), cfg.DefaultCUAS, logger)
	if err != nil {
		logger.Error().Err(err).Msg("to_ical failed")
		fmt.Fprintf(os.Stderr, "convert: %v\n", err)
		os.Exit(1)
	}
	ics, err := ical.Encode(cal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode ics: %v\n", err)
		os.Exit(1)
	}
	if err := writeOutput(*out, ics); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
}

// runRoundtrip exercises both directions against one input file, a smoke
// check that to_jmap/to_ical compose without dropping the VCALENDAR
// structure; it prints the re-encoded ICS, not the intermediate JSON.
func runRoundtrip(cfg *config.Config, logger zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("roundtrip", flag.ExitOnError)
	in := fs.String("in", "-", "input .ics path, - for stdin")
	out := fs.String("out", "-", "output .ics path, - for stdout")
	fs.Parse(args)

	data, err := readInput(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		os.Exit(1)
	}
	cal, err := ical.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode ics: %v\n", err)
		os.Exit(1)
	}

	tz := tzcache.New()
	events, err := convert.ToJMAPAll(tz, cal, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "to_jmap_all: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stderr, "no events found")
		os.Exit(1)
	}

	prodID := cfg.ICS.BuildProdID()
	rebuilt, err := convert.ToICal(tz, events[0], prodID, cfg.DefaultCUAS, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "to_ical: %v\n", err)
		os.Exit(1)
	}
	ics, err := ical.Encode(rebuilt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode ics: %v\n", err)
		os.Exit(1)
	}
	if err := writeOutput(*out, ics); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
}

func splitProps(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
