package watcher

import (
	"fmt"
	"strings"
)

// Mode selects one of the four watching strategies.
type Mode int

const (
	// ModeManual watches each file individually.
	ModeManual Mode = iota
	// ModeNative uses the backend's recursive directory watch.
	ModeNative
	// ModeManualFiltered watches a subset of the files individually.
	ModeManualFiltered
	// ModeNativeFiltered watches the directory recursively but only reports
	// events for a subset of the files.
	ModeNativeFiltered
)

var modeNames = map[Mode]string{
	ModeManual:         "manual",
	ModeNative:         "native",
	ModeManualFiltered: "manual-filtered",
	ModeNativeFiltered: "native-filtered",
}

var modeDisplayNames = map[Mode]string{
	ModeManual:         "Manual Recursive",
	ModeNative:         "Native Recursive",
	ModeManualFiltered: "Manual Filtered",
	ModeNativeFiltered: "Native Filtered",
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	return []Mode{ModeManual, ModeNative, ModeManualFiltered, ModeNativeFiltered}
}

// ParseMode is case insensitive.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) DisplayName() string {
	if name, ok := modeDisplayNames[m]; ok {
		return name
	}

	return m.String()
}

func (m Mode) Filtered() bool {
	return m == ModeManualFiltered || m == ModeNativeFiltered
}
