package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrLocked means another run holds a fresh lock
var ErrLocked = errors.New("another run holds the lock")

// Lock is an exclusive lock file. A heartbeat refreshes its modification time
// while held; a file older than the TTL is taken over as stale.
type Lock struct {
	path string
	stop chan struct{}
	done sync.WaitGroup
	once sync.Once
}

type lockOwner struct {
	PID   int    `json:"pid"`
	Time  int64  `json:"time"`
	RunID string `json:"run_id,omitempty"`
}

// AcquireLock creates path exclusively. It returns ErrLocked when the file
// exists and was refreshed within ttl.
func AcquireLock(path string, ttl time.Duration, runID string) (*Lock, error) {
	if path == "" {
		return nil, errors.New("lock path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving lock path: %w", err)
	}

	// one takeover attempt; a second EEXIST means a racing run won
	for takeover := 0; takeover < 2; takeover++ {
		f, err := os.OpenFile(abs, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			werr := json.NewEncoder(f).Encode(lockOwner{PID: os.Getpid(), Time: time.Now().Unix(), RunID: runID})
			cerr := f.Close()
			if err := errors.Join(werr, cerr); err != nil {
				os.Remove(abs)
				return nil, fmt.Errorf("writing lock file: %w", err)
			}
			l := &Lock{path: abs, stop: make(chan struct{})}
			l.heartbeat(ttl)
			return l, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock file: %w", err)
		}

		fi, err := os.Stat(abs)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("checking lock file: %w", err)
		}
		if ttl <= 0 || time.Since(fi.ModTime()) < ttl {
			return nil, fmt.Errorf("%s: %w", abs, ErrLocked)
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%s: %w", abs, ErrLocked)
}

func (l *Lock) heartbeat(ttl time.Duration) {
	every := ttl / 3
	if every <= 0 {
		return
	}
	l.done.Add(1)
	go func() {
		defer l.done.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case now := <-t.C:
				_ = os.Chtimes(l.path, now, now)
			}
		}
	}()
}

// Path returns the absolute lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release stops the heartbeat and removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		l.done.Wait()
		if rerr := os.Remove(l.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = fmt.Errorf("removing lock file: %w", rerr)
		}
	})
	return err
}
