package bench

import (
	"errors"
	"fmt"
	"os"

	"github.com/Leantar/fswatchbench/modules/watcher"
)

var ErrNotDirectory = errors.New("not a directory")

// Commands accepted by Run besides the watcher modes.
const (
	CmdCompare         = "compare"
	CmdCompareFiltered = "compare-filtered"
	CmdTestManual      = "test-manual"
	CmdTestNative      = "test-native"
	CmdTestFiltered    = "test-filtered"
	CmdTestAll         = "test-all"
)

// CheckDir verifies that dir exists and is a directory.
func CheckDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("directory '%s' does not exist: %w", dir, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("'%s': %w", dir, ErrNotDirectory)
	}

	return nil
}

// Run executes one command against dir. cmd is either a watcher mode, which
// runs Benchmark, or one of the Cmd constants.
func (r *Runner) Run(dir, cmd string) error {
	if err := CheckDir(dir); err != nil {
		return err
	}

	switch cmd {
	case CmdCompare:
		_, err := r.Compare(dir, false)
		return err
	case CmdCompareFiltered:
		_, err := r.Compare(dir, true)
		return err
	case CmdTestManual:
		r.printf("Running watch test for manual mode\n")
		_, err := r.WatchTest(dir, watcher.ModeManual)
		return err
	case CmdTestNative:
		r.printf("Running watch test for native mode\n")
		_, err := r.WatchTest(dir, watcher.ModeNative)
		return err
	case CmdTestFiltered:
		r.printf("Running watch tests for filtered modes\n")
		return r.testAll(dir, watcher.ModeManualFiltered, watcher.ModeNativeFiltered)
	case CmdTestAll:
		r.printf("Running all watch tests\n")
		return r.testAll(dir, watcher.Modes()...)
	}

	mode, err := watcher.ParseMode(cmd)
	if err != nil {
		return err
	}

	_, err = r.Benchmark(dir, mode)
	return err
}

// testAll runs a watch test per mode. A failing mode is reported and does not
// stop the others.
func (r *Runner) testAll(dir string, modes ...watcher.Mode) error {
	for _, mode := range modes {
		r.rule()
		if _, err := r.WatchTest(dir, mode); err != nil {
			r.printf("%s test failed: %v\n", mode.DisplayName(), err)
		}
	}

	return nil
}
