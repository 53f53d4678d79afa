// Package bench drives the watcher strategies against a directory tree and
// reports setup cost and observed events.
package bench

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/Leantar/fswatchbench/modules/watcher"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const shownEvents = 5

type Runner struct {
	conf Config
	out  io.Writer
	opts []watcher.Option
}

// New creates a Runner writing its report to out. opts are applied after the
// configured backend.
func New(conf Config, out io.Writer, opts ...watcher.Option) *Runner {
	return &Runner{
		conf: conf,
		out:  out,
		opts: append([]watcher.Option{watcher.WithBackend(conf.Backend)}, opts...),
	}
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) rule() {
	r.printf("\n%s\n", strings.Repeat("=", 60))
}

// subset applies the exclude patterns, relative to dir, and then the filter
// ratio.
func (r *Runner) subset(dir string, all []string) ([]string, error) {
	kept, err := Exclude(dir, all, r.conf.Exclude)
	if err != nil {
		return nil, err
	}

	return SelectEvery(kept, r.conf.FilterRatio), nil
}

// session is an open watcher of any mode.
type session struct {
	setupTime time.Duration
	count     int
	watch     *watcher.Watch
	rx        *watcher.Receiver
}

func (s session) Close() {
	if err := s.watch.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close watch")
	}
	s.rx.Close()
}

// open builds the watcher for mode. count is the number of watched or
// filtered files; native mode has no per-file count and reports len(all).
func (r *Runner) open(mode watcher.Mode, dir string, all, subset []string) (session, error) {
	var s session

	switch mode {
	case watcher.ModeManual:
		w, err := watcher.NewManual(dir, r.opts...)
		if err != nil {
			return s, err
		}
		s.setupTime, s.count = w.SetupTime(), w.FilesWatched()
		s.watch, s.rx = w.Split()
	case watcher.ModeNative:
		w, err := watcher.NewNative(dir, r.opts...)
		if err != nil {
			return s, err
		}
		s.setupTime, s.count = w.SetupTime(), len(all)
		s.watch, s.rx = w.Split()
	case watcher.ModeManualFiltered:
		w, err := watcher.NewManualWithFiles(subset, r.opts...)
		if err != nil {
			return s, err
		}
		s.setupTime, s.count = w.SetupTime(), w.FilesWatched()
		s.watch, s.rx = w.Split()
	case watcher.ModeNativeFiltered:
		w, err := watcher.NewNativeWithFilter(dir, subset, r.opts...)
		if err != nil {
			return s, err
		}
		s.setupTime, s.count = w.SetupTime(), w.FilesFiltered()
		s.watch, s.rx = w.Split()
	default:
		return s, fmt.Errorf("%w: %v", watcher.ErrUnknownMode, mode)
	}

	return s, nil
}

// AveragePerFile divides setup by count, treating a zero count as one. For
// native filtered mode the setup covers one recursive registration, so the
// figure is only comparable in shape to the manual one.
func AveragePerFile(setup time.Duration, count int) time.Duration {
	if count < 1 {
		count = 1
	}

	return setup / time.Duration(count)
}

type Result struct {
	RunID        string
	Mode         watcher.Mode
	Files        int
	Watched      int
	SetupTime    time.Duration
	TotalSetup   time.Duration
	Events       int
	Errors       int
	Disconnected bool
}

// Benchmark enumerates dir, builds the watcher for mode and then listens for
// EventWindow, printing the first few events.
func (r *Runner) Benchmark(dir string, mode watcher.Mode) (Result, error) {
	res := Result{RunID: uuid.NewString(), Mode: mode}
	logger := log.With().Str("run", res.RunID).Str("mode", mode.String()).Logger()

	r.printf("\n=== Benchmarking %s Watcher ===\n", mode.DisplayName())
	r.printf("Directory: %s\n", dir)

	startCount := time.Now()
	all := watcher.CollectFiles(dir)
	r.printf("File enumeration: %d files in %v\n", len(all), time.Since(startCount))
	res.Files = len(all)

	subset, err := r.subset(dir, all)
	if err != nil {
		return res, err
	}

	r.printf("\nSetting up %s watcher...\n", strings.ToLower(mode.DisplayName()))
	if mode.Filtered() {
		r.printf("Filtering: every %dth file (%d out of %d files)\n", r.conf.FilterRatio, len(subset), len(all))
	}

	startSetup := time.Now()
	s, err := r.open(mode, dir, all, subset)
	if err != nil {
		return res, err
	}
	defer s.Close()

	res.TotalSetup = time.Since(startSetup)
	res.SetupTime = s.setupTime
	res.Watched = s.count
	logger.Info().Dur("setup", s.setupTime).Int("watched", s.count).Msg("watcher ready")

	r.printf("\n--- Setup Complete ---\n")
	r.printf("Watcher setup time: %v\n", res.SetupTime)
	r.printf("Total setup time (including overhead): %v\n", res.TotalSetup)
	r.printf("Files being watched/filtered: %d\n", res.Watched)
	if mode.Filtered() {
		r.printf("Average time per filtered file: %v\n", AveragePerFile(res.SetupTime, res.Watched))
	}

	r.printf("\nWatcher is active. Waiting for events (%v)...\n", r.conf.EventWindow)
	r.printf("(Try modifying some files to see events)\n")

	res.Events, res.Errors, res.Disconnected = r.collect(s.rx, r.conf.EventWindow, func(n int, e notifier.Event) {
		if n <= shownEvents {
			r.printf("Event #%d: %s for %v\n", n, e.Kind, e.Paths)
		}
	})

	if res.Disconnected {
		r.printf("Watcher disconnected\n")
	}

	switch {
	case res.Events > shownEvents:
		r.printf("... and %d more events\n", res.Events-shownEvents)
	case res.Events == 0:
		r.printf("No events received (this is expected if no files were modified)\n")
	}

	r.printf("\n=== Benchmark Complete ===\n\n")

	return res, nil
}

// collect polls rx until window has passed or the stream ends. each is called
// with the running event number.
func (r *Runner) collect(rx *watcher.Receiver, window time.Duration, each func(int, notifier.Event)) (events, errs int, disconnected bool) {
	start := time.Now()

	for time.Since(start) < window {
		res, err := rx.RecvTimeout(r.conf.PollInterval)
		switch {
		case errors.Is(err, watcher.ErrTimeout):
			continue
		case errors.Is(err, watcher.ErrDisconnected):
			return events, errs, true
		case err != nil:
			log.Error().Caller().Err(err).Msg("failed to receive event")
			return events, errs, false
		case res.IsErr():
			errs++
			log.Error().Err(res.Err).Msg("watch error")
		default:
			events++
			if each != nil {
				each(events, res.Event)
			}
		}
	}

	return events, errs, false
}

type Comparison struct {
	Filtered   bool
	ManualTime time.Duration
	NativeTime time.Duration
	ManualErr  error
	NativeErr  error
}

// Speedup returns which strategy was faster and by what factor. The factor is
// zero when either side has no measurement.
func (c Comparison) Speedup() (faster string, factor float64) {
	if c.NativeTime < c.ManualTime {
		faster = "Native"
		if c.NativeTime > 0 {
			factor = float64(c.ManualTime) / float64(c.NativeTime)
		}
	} else {
		faster = "Manual"
		if c.ManualTime > 0 {
			factor = float64(c.NativeTime) / float64(c.ManualTime)
		}
	}

	if c.Filtered {
		faster += " filtered"
	}

	return faster, factor
}

// Compare measures the manual and native strategies, or their filtered
// variants, against dir. A strategy that fails is reported and left at zero.
func (r *Runner) Compare(dir string, filtered bool) (Comparison, error) {
	c := Comparison{Filtered: filtered}
	all := watcher.CollectFiles(dir)

	manual, native := watcher.ModeManual, watcher.ModeNative
	var subset []string

	if filtered {
		manual, native = watcher.ModeManualFiltered, watcher.ModeNativeFiltered

		var err error
		subset, err = r.subset(dir, all)
		if err != nil {
			return c, err
		}

		r.printf("Comparing filtered manual vs filtered native watching\n\n")
		r.printf("Test directory: %s\n", dir)
		r.printf("Total files: %d, Filtered to: %d files\n", len(all), len(subset))
	} else {
		r.printf("Comparing manual vs native recursive watching\n\n")
		r.printf("Test directory: %s\n", dir)
		r.printf("Total files in directory: %d\n", len(all))
	}

	r.rule()
	c.ManualTime, c.ManualErr = r.measure(manual, dir, all, subset)
	r.rule()
	c.NativeTime, c.NativeErr = r.measure(native, dir, all, subset)
	r.rule()

	label := ""
	if filtered {
		label = " filtered"
	}

	r.printf("\nComparison Results:\n")
	r.printf("  Manual%s setup time: %v\n", label, c.ManualTime)
	r.printf("  Native%s setup time: %v\n", label, c.NativeTime)

	faster, factor := c.Speedup()
	r.printf("  %s is %.2fx faster\n", faster, factor)

	return c, nil
}

func (r *Runner) measure(mode watcher.Mode, dir string, all, subset []string) (time.Duration, error) {
	s, err := r.open(mode, dir, all, subset)
	if err != nil {
		r.printf("%s watcher failed: %v\n", mode.DisplayName(), err)
		return 0, err
	}
	defer s.Close()

	r.printf("\n%s Watcher:\n", mode.DisplayName())
	r.printf("  Setup time: %v\n", s.setupTime)

	switch mode {
	case watcher.ModeManual, watcher.ModeManualFiltered:
		r.printf("  Files watched: %d\n", s.count)
	case watcher.ModeNativeFiltered:
		r.printf("  Files filtered: %d\n", s.count)
	}

	return s.setupTime, nil
}
