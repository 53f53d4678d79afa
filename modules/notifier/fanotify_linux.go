//go:build linux

package notifier

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	InitFlags = unix.FAN_CLOEXEC |
		unix.FAN_NONBLOCK |
		unix.FAN_REPORT_DFID_NAME |
		unix.FAN_UNLIMITED_QUEUE
	InitEventFlags = unix.O_CLOEXEC |
		unix.O_RDONLY |
		unix.O_LARGEFILE
	MarkTreeFlags = unix.FAN_MARK_ADD |
		unix.FAN_MARK_FILESYSTEM
	MarkPathFlags = unix.FAN_MARK_ADD
	MarkEventFlags = unix.FAN_MODIFY |
		unix.FAN_CREATE |
		unix.FAN_DELETE |
		unix.FAN_MOVE |
		unix.FAN_ATTRIB |
		unix.FAN_ONDIR
	// Directory entry events cannot be requested on a file mark.
	MarkFileEventFlags = unix.FAN_MODIFY |
		unix.FAN_ATTRIB
	MountFDMode = unix.O_DIRECTORY |
		unix.O_RDONLY
)

func init() {
	register("fanotify", newFanotifyBackend)
}

type fanotifyEventInfoHeader struct {
	InfoType uint8
	Pad      uint8
	Len      uint16
}

type fanotifyEventInfoFid struct {
	fanotifyEventInfoHeader
	FSID uint64
}

// Although unix.FileHandle exists, it cannot be used with binary.Read() as the
// fields inside are not exported.
type fileHandleInfo struct {
	Bytes uint32
	Type  int32
}

// fanotifyBackend marks whole filesystems for recursive registrations and
// single inodes otherwise, then keeps only events below a registered root or
// on a registered path. It needs CAP_SYS_ADMIN.
type fanotifyBackend struct {
	h       Handler
	fd      int
	mountFd int
	wake    [2]int
	trees   map[string]struct{}
	paths   map[string]struct{}
	mu      *sync.Mutex
	wg      sync.WaitGroup
	closed  bool
}

func newFanotifyBackend(h Handler) (Backend, error) {
	fd, err := unix.FanotifyInit(InitFlags, InitEventFlags)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize fanotify: %w", err)
	}

	mountFd, err := unix.Open("/", MountFDMode, 0)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("failed to open '/': %w", err)
	}

	var wake [2]int
	if err := unix.Pipe2(wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(mountFd)
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}

	b := &fanotifyBackend{
		h:       h,
		fd:      fd,
		mountFd: mountFd,
		wake:    wake,
		trees:   make(map[string]struct{}),
		paths:   make(map[string]struct{}),
		mu:      &sync.Mutex{},
	}

	b.wg.Add(1)
	go b.readEvents()

	return b, nil
}

func (b *fanotifyBackend) Watch(path string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	p, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// Trim trailing slash to be able to match events inside folders
	p = strings.TrimSuffix(p, "/")

	flags := uint(MarkPathFlags)
	mask := uint64(MarkEventFlags)
	if recursive {
		flags = MarkTreeFlags
	} else if info, err := os.Stat(p); err == nil && !info.IsDir() {
		mask = MarkFileEventFlags
	}

	err = unix.FanotifyMark(b.fd, flags, mask, unix.AT_FDCWD, p)
	if err != nil {
		return fmt.Errorf("failed to create fanotify mark for path %s: %w", p, err)
	}

	if recursive {
		b.trees[p] = struct{}{}
	} else {
		b.paths[p] = struct{}{}
	}

	return nil
}

func (b *fanotifyBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	_, _ = unix.Write(b.wake[1], []byte{0})
	b.wg.Wait()

	// Closing the group fd drops every mark it holds.
	_ = unix.Close(b.fd)
	_ = unix.Close(b.mountFd)
	_ = unix.Close(b.wake[0])
	_ = unix.Close(b.wake[1])

	return nil
}

func (b *fanotifyBackend) isWatched(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.paths[path]; ok {
		return true
	}
	// A single registration on a directory covers its direct children.
	if _, ok := b.paths[filepath.Dir(path)]; ok {
		return true
	}

	for {
		if _, ok := b.trees[path]; ok {
			return true
		}

		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
}

func (b *fanotifyBackend) readEvents() {
	defer b.wg.Done()

	buf := make([]byte, 4096)
	fds := []unix.PollFd{
		{Fd: int32(b.fd), Events: unix.POLLIN},
		{Fd: int32(b.wake[0]), Events: unix.POLLIN},
	}

	for {
		_, err := unix.Poll(fds, -1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			b.h(Result{Err: &BackendError{Backend: "fanotify", Err: err}})
			return
		}

		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}

		n, err := unix.Read(b.fd, buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			b.h(Result{Err: &BackendError{Backend: "fanotify", Err: fmt.Errorf("failed to read event: %w", err)}})
			return
		}

		b.parseEvents(buf[:n])
	}
}

// Partly copied from LXD (https://github.com/lxc/lxd), but was mostly rewritten
// to fix bugs and adapt the use case
func (b *fanotifyBackend) parseEvents(buf []byte) {
	rd := bytes.NewReader(buf)
	var offset int64

	for offset < int64(len(buf)) {
		var event unix.FanotifyEventMetadata

		err := binary.Read(rd, binary.LittleEndian, &event)
		if err != nil {
			log.Error().Caller().Err(err).Msg("failed to read event metadata")
			return
		}

		end := offset + int64(event.Event_len)

		if event.Mask&unix.FAN_Q_OVERFLOW != 0 {
			b.h(Result{Err: &BackendError{Backend: "fanotify", Err: errors.New("event queue overflow")}})
			offset, _ = rd.Seek(end, io.SeekStart)
			continue
		}

		eventPath, err := b.readEventPath(rd, buf, end)
		if err != nil {
			log.Debug().Err(err).Msg("failed to resolve event path")
			offset, _ = rd.Seek(end, io.SeekStart)
			continue
		}

		// Set the offset to the start of the next event
		offset, err = rd.Seek(end, io.SeekStart)
		if err != nil {
			log.Error().Caller().Err(err).Msg("failed to set new offset")
			return
		}

		if b.isWatched(eventPath) {
			b.h(Result{Event: newEvent(fanotifyKind(event.Mask), eventPath)})
		}
	}
}

func (b *fanotifyBackend) readEventPath(rd *bytes.Reader, buf []byte, end int64) (string, error) {
	var fid fanotifyEventInfoFid

	err := binary.Read(rd, binary.LittleEndian, &fid)
	if err != nil {
		return "", fmt.Errorf("failed to read event fid: %w", err)
	}

	var fhInfo fileHandleInfo

	err = binary.Read(rd, binary.LittleEndian, &fhInfo)
	if err != nil {
		return "", fmt.Errorf("failed to read file handle info: %w", err)
	}

	fileHandle := make([]byte, fhInfo.Bytes)

	err = binary.Read(rd, binary.LittleEndian, &fileHandle)
	if err != nil {
		return "", fmt.Errorf("failed to read file handle: %w", err)
	}

	fh := unix.NewFileHandle(fhInfo.Type, fileHandle)

	// ESTALE is common when a folder containing multiple files is removed at
	// once. The folder event itself still arrives.
	fd, err := unix.OpenByHandleAt(b.mountFd, fh, os.O_RDONLY)
	if err != nil {
		return "", fmt.Errorf("failed to open file handle: %w", err)
	}
	defer unix.Close(fd)

	dir, err := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
	if err != nil {
		return "", fmt.Errorf("failed to read symlink: %w", err)
	}

	// A deleted target carries a " (deleted)" suffix.
	dir = strings.TrimSuffix(dir, " (deleted)")

	start, _ := rd.Seek(0, io.SeekCurrent)
	if start > end {
		return "", errors.New("truncated event")
	}

	// Read filename from buf and remove NULL terminator
	filename := unix.ByteSliceToString(buf[start:end])

	return filepath.Join(dir, filename), nil
}

func fanotifyKind(mask uint64) Kind {
	switch {
	case mask&(unix.FAN_CREATE|unix.FAN_MOVED_TO) != 0:
		return KindCreate
	case mask&(unix.FAN_DELETE|unix.FAN_MOVED_FROM) != 0:
		return KindRemove
	case mask&unix.FAN_MODIFY != 0:
		return KindModify
	default:
		return KindOther
	}
}
