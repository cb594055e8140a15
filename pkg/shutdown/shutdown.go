// Package shutdown handles process exit: signal wiring, fatal aborts,
// and the crash/abort record files operators inspect after the fact.
package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"parley/pkg/logger"
)

type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Abort logs a fatal condition, writes diagnostics under the data dir,
// and exits after a short countdown so logs and dumps can flush.
func Abort(contextMsg string, err error, dataPath string, delaySeconds ...int) {
	delay := 10
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	dumpPath, reqPath, derr := AbortWithDiagnostics(dataPath, contextMsg, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(time.Second)
	}
	os.Exit(2)
}

// AbortWithDiagnostics writes a human-readable crash dump plus a
// machine-readable abort request referencing it. Both land under
// <data>/state so they survive with the database.
func AbortWithDiagnostics(dataPath, reason string, err error) (string, string, error) {
	crashDir := "./crash"
	abortDir := "./abort"
	if dataPath != "" {
		crashDir = filepath.Join(dataPath, "state", "crash")
		abortDir = filepath.Join(dataPath, "state", "abort")
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", "", fmt.Errorf("create crash dir: %w", e)
	}
	if e := os.MkdirAll(abortDir, 0o700); e != nil {
		return "", "", fmt.Errorf("create abort dir: %w", e)
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	f, ferr := os.CreateTemp(crashDir, ".crash-*.tmp")
	if ferr != nil {
		return "", "", fmt.Errorf("create temp crash file: %w", ferr)
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", err)
	fmt.Fprintf(f, "\n--- environ ---\n")
	for _, e := range os.Environ() {
		fmt.Fprintln(f, e)
	}
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	_ = f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", "", fmt.Errorf("move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)

	reqPath, rerr := writeExitRequest(abortDir, exitRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		Cmd:       "crash",
		CrashPath: dumpPath,
		Meta:      map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}, ts)
	if rerr != nil {
		return dumpPath, "", rerr
	}
	return dumpPath, reqPath, nil
}

// RequestExitFile records an operator-requested abort (no crash dump).
func RequestExitFile(dataPath, reason string) (string, error) {
	abortDir := "./abort"
	if dataPath != "" {
		abortDir = filepath.Join(dataPath, "state", "abort")
	}
	if err := os.MkdirAll(abortDir, 0o700); err != nil {
		return "", err
	}
	return writeExitRequest(abortDir, exitRequest{
		Time:   time.Now().UTC().Format(time.RFC3339),
		Reason: reason,
		Cmd:    "abort",
		Meta:   map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}, time.Now().UnixNano())
}

// writeExitRequest lands the request atomically: temp file, fsync,
// rename.
func writeExitRequest(abortDir string, req exitRequest, ts int64) (string, error) {
	tmp, err := os.CreateTemp(abortDir, ".req-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp req file: %w", err)
	}
	name := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(req); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("encode req: %w", err)
	}
	_ = tmp.Sync()
	_ = tmp.Close()

	reqPath := filepath.Join(abortDir, fmt.Sprintf("req-%d.json", ts))
	if err := os.Rename(name, reqPath); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("move req into place: %w", err)
	}
	_ = os.Chmod(reqPath, 0o600)
	return reqPath, nil
}

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM.
// SIGPIPE additionally dumps goroutine stacks before cancelling.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE, dumping goroutine stacks")
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}
