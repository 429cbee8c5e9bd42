// Command ada-query inspects a capture bundle from the command line:
// query <bundle> summary|events|functions|threads|calls <functionId>.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/adatrace/ada-trace/internal/atf"
	"github.com/adatrace/ada-trace/internal/bundle"
	"github.com/adatrace/ada-trace/internal/session"
	"github.com/adatrace/ada-trace/pkg/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ada-query <bundle> summary|events|functions|threads|calls <functionId>")
}

func main() {
	fs := flag.NewFlagSet("ada-query", flag.ExitOnError)
	fs.Parse(os.Args[1:])
	args := fs.Args()
	if len(args) < 2 {
		usage()
		os.Exit(2)
	}

	bundleDir, subcommand, rest := args[0], args[1], args[2:]

	b, err := bundle.Open(bundleDir)
	if err != nil {
		log.Fatalf("ada-query: %v", err)
	}
	sess, err := session.Open(b.TracePath())
	if err != nil {
		log.Fatalf("ada-query: opening trace session: %v", err)
	}
	defer sess.Close()

	var exitErr error
	switch subcommand {
	case "summary":
		exitErr = runSummary(sess)
	case "events":
		exitErr = runEvents(sess)
	case "threads":
		exitErr = runThreads(sess)
	case "functions":
		exitErr = runFunctions(sess)
	case "calls":
		exitErr = runCalls(sess, rest)
	default:
		usage()
		os.Exit(2)
	}

	if exitErr != nil {
		log.Fatalf("ada-query: %v", exitErr)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSummary(sess *session.SessionReader) error {
	start, end := sess.TimeRange()
	return printJSON(map[string]interface{}{
		"thread_count":  len(sess.Threads()),
		"event_count":   sess.EventCount(),
		"time_start_ns": start,
		"time_end_ns":   end,
	})
}

func runThreads(sess *session.SessionReader) error {
	type threadSummary struct {
		ThreadID    uint32 `json:"thread_id"`
		EventCount  uint32 `json:"event_count"`
		TimeStartNs uint64 `json:"time_start_ns"`
		TimeEndNs   uint64 `json:"time_end_ns"`
	}
	var out []threadSummary
	for _, th := range sess.Threads() {
		start, end := th.TimeRange()
		out = append(out, threadSummary{
			ThreadID:    th.ThreadID(),
			EventCount:  th.Index.Len(),
			TimeStartNs: start,
			TimeEndNs:   end,
		})
	}
	return printJSON(out)
}

func runEvents(sess *session.SessionReader) error {
	enc := json.NewEncoder(os.Stdout)
	for _, th := range sess.Threads() {
		n := th.Index.Len()
		for seq := uint32(0); seq < n; seq++ {
			e, ok := th.Index.Get(seq)
			if !ok {
				break
			}
			if err := enc.Encode(indexEventJSON(th.ThreadID(), seq, e)); err != nil {
				return err
			}
		}
	}
	return nil
}

func indexEventJSON(threadID, seq uint32, e atf.IndexEvent) map[string]interface{} {
	return map[string]interface{}{
		"thread_id":    threadID,
		"sequence":     seq,
		"timestamp_ns": e.TimestampNs,
		"function_id":  e.FunctionID,
		"kind":         e.EventKind.String(),
		"call_depth":   e.CallDepth,
		"has_detail":   e.HasDetail(),
	}
}

func runFunctions(sess *session.SessionReader) error {
	counts := map[uint64]int{}
	for _, th := range sess.Threads() {
		n := th.Index.Len()
		for seq := uint32(0); seq < n; seq++ {
			e, ok := th.Index.Get(seq)
			if !ok {
				break
			}
			counts[e.FunctionID]++
		}
	}
	return printJSON(counts)
}

func runCalls(sess *session.SessionReader, rest []string) error {
	if len(rest) != 1 {
		return fmt.Errorf("calls requires exactly one functionId argument")
	}
	functionID, err := strconv.ParseUint(rest[0], 0, 64)
	if err != nil {
		return fmt.Errorf("invalid functionId %q: %w", rest[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	for _, th := range sess.Threads() {
		n := th.Index.Len()
		for seq := uint32(0); seq < n; seq++ {
			e, ok := th.Index.Get(seq)
			if !ok {
				break
			}
			if e.FunctionID != functionID {
				continue
			}
			if err := enc.Encode(indexEventJSON(th.ThreadID(), seq, e)); err != nil {
				return err
			}
		}
	}
	return nil
}
