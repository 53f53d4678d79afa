package bench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Leantar/fswatchbench/models"
	"github.com/Leantar/fswatchbench/modules/fixture"
	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/Leantar/fswatchbench/modules/report"
	"github.com/Leantar/fswatchbench/modules/watcher"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	shownTestEvents = 3
	modifyDelay     = 10 * time.Millisecond
)

type TestResult struct {
	RunID     string
	Mode      watcher.Mode
	Copied    int
	Watched   int
	SetupTime time.Duration
	Modified  int
	Events    []notifier.Event
	Errors    int
}

// WatchTest copies dir into a scratch directory, watches the copy with mode,
// appends to a few files and reports what the watcher saw. The copy is removed
// afterwards.
func (r *Runner) WatchTest(dir string, mode watcher.Mode) (TestResult, error) {
	res := TestResult{RunID: uuid.NewString(), Mode: mode}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return res, fmt.Errorf("failed to get absolute path: %w", err)
	}

	tmp, err := filepath.Abs(filepath.Join(r.conf.TmpDir, filepath.Base(abs)))
	if err != nil {
		return res, fmt.Errorf("failed to get absolute path: %w", err)
	}

	if rel, err := filepath.Rel(abs, tmp); err == nil && !strings.HasPrefix(rel, "..") {
		return res, fmt.Errorf("temporary directory %s must not be inside %s", tmp, abs)
	}

	r.printf("\n=== Watch Test for %s ===\n", mode.DisplayName())
	r.printf("Source directory: %s\n", dir)
	r.printf("Temporary directory: %s\n", tmp)

	r.printf("\n1. Copying files to temporary directory...\n")
	copyStart := time.Now()

	if err := fixture.Remove(tmp); err != nil {
		return res, err
	}
	if err := fixture.Copy(abs, tmp); err != nil {
		return res, err
	}
	defer r.cleanup(tmp)

	if err := fixture.Verify(abs, tmp); err != nil {
		return res, fmt.Errorf("failed to verify copy: %w", err)
	}

	all := watcher.CollectFiles(tmp)
	res.Copied = len(all)
	r.printf("   Copied %d files in %v\n", res.Copied, time.Since(copyStart))

	r.printf("\n2. Setting up %s watcher...\n", mode.DisplayName())
	setupStart := time.Now()

	subset, err := r.subset(tmp, all)
	if err != nil {
		return res, err
	}

	s, err := r.open(mode, tmp, all, subset)
	if err != nil {
		return res, err
	}
	defer s.Close()

	res.SetupTime, res.Watched = s.setupTime, s.count
	r.printf("   Setup time: %v\n", s.setupTime)
	switch mode {
	case watcher.ModeManual, watcher.ModeManualFiltered:
		r.printf("   Files watched: %d\n", s.count)
	case watcher.ModeNativeFiltered:
		r.printf("   Files filtered: %d\n", s.count)
	}
	r.printf("   Total setup time: %v\n", time.Since(setupStart))

	r.printf("\n3. Running file modification tests...\n")

	toModify := all
	if len(toModify) > r.conf.ModifyCount {
		toModify = toModify[:r.conf.ModifyCount]
	}

	if len(toModify) == 0 {
		r.printf("   No files to modify for testing\n")
		return res, nil
	}

	r.printf("   Modifying %d test files...\n", len(toModify))

	type collection struct {
		events []notifier.Event
		errs   int
	}

	collected := make(chan collection, 1)
	go func(rx *watcher.Receiver) {
		var c collection
		_, c.errs, _ = r.collect(rx, r.conf.TestWindow, func(_ int, ev notifier.Event) {
			c.events = append(c.events, ev)
		})
		collected <- c
	}(s.rx)

	// Give the watcher time to settle
	time.Sleep(r.conf.SettleDelay)

	modifyStart := time.Now()
	for i, path := range toModify {
		if err := appendLine(path, fmt.Sprintf("\n// Modified by test %d", i)); err != nil {
			r.printf("   Failed to modify %s: %v\n", path, err)
			continue
		}
		res.Modified++
		time.Sleep(modifyDelay)
	}
	r.printf("   Modified %d files in %v\n", res.Modified, time.Since(modifyStart))

	r.printf("   Collecting events for %v...\n", r.conf.TestWindow)

	select {
	case c := <-collected:
		res.Events, res.Errors = c.events, c.errs
	case <-time.After(r.conf.TestWindow + time.Second):
		log.Warn().Str("run", res.RunID).Msg("event collection did not finish in time")
	}

	r.printf("   Received %d events\n", len(res.Events))
	for i, e := range res.Events {
		if i >= shownTestEvents {
			r.printf("   ... and %d more events\n", len(res.Events)-shownTestEvents)
			break
		}
		r.printf("   Event %d: %s%s\n", i+1, e.Kind, describe(e))
	}

	r.forward(res.Events)

	return res, nil
}

func (r *Runner) cleanup(tmp string) {
	r.printf("\n4. Cleaning up temporary directory...\n")
	start := time.Now()

	if err := fixture.Remove(tmp); err != nil {
		log.Error().Caller().Err(err).Msg("failed to clean up")
		return
	}
	r.printf("   Cleanup completed in %v\n", time.Since(start))
	r.printf("\n=== Watch Test Complete ===\n\n")
}

// forward sends events to the FIM server when one is configured.
func (r *Runner) forward(events []notifier.Event) {
	if !r.conf.Report.Enabled() || len(events) == 0 {
		return
	}

	rep := report.New(r.conf.Report)
	if err := rep.Connect(); err != nil {
		log.Error().Caller().Err(err).Msg("failed to connect to fim server")
		return
	}
	defer rep.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range events {
		if err := rep.Report(ctx, e); err != nil {
			log.Error().Caller().Err(err).Msg("failed to report event")
			return
		}
	}
	r.printf("   Forwarded %d events to %s\n", len(events), r.conf.Report.Host)
}

// describe renders the first path of e with a short content hash.
func describe(e notifier.Event) string {
	if len(e.Paths) == 0 {
		return ""
	}

	obj, err := models.Snapshot(e.Paths[0])
	switch {
	case err != nil:
		return fmt.Sprintf(" %s", e.Paths[0])
	case obj.Missing:
		return fmt.Sprintf(" %s (gone)", obj.Path)
	case obj.Regular:
		return fmt.Sprintf(" %s blake3:%s", obj.Path, obj.ShortHash())
	default:
		return fmt.Sprintf(" %s", obj.Path)
	}
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(line); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
