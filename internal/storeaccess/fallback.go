package storeaccess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/flock"

	"michatta/internal/facade"
	"michatta/internal/viewed"
)

// ErrDaemonRunning reports that the daemon owns the store, so an in-process
// store must not be opened next to its cache.
var ErrDaemonRunning = errors.New("daemon is running and owns the viewed store")

// Session represents a storage client and its cleanup function.
type Session struct {
	Client *Client
	// Daemon is set when calls go through the daemon API.
	Daemon *HTTPCaller
	close  func() error
}

// Remote reports whether the session talks to the daemon.
func (s Session) Remote() bool {
	return s.Daemon != nil
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// LocalLock holds the daemon lock while a store is used in-process.
type LocalLock struct {
	lock *flock.Flock
}

// AcquireLocal takes the daemon lock at lockPath. It fails with
// ErrDaemonRunning while a daemon holds it. An empty path returns a no-op lock.
func AcquireLocal(lockPath string) (*LocalLock, error) {
	if strings.TrimSpace(lockPath) == "" {
		return &LocalLock{}, nil
	}
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("check daemon lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s); use the daemon API or stop it first", ErrDaemonRunning, lockPath)
	}
	return &LocalLock{lock: lock}, nil
}

// Release drops the lock.
func (l *LocalLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// OpenWithFallback tries the daemon first and falls back to a directly
// opened store only when no daemon answers. Other dial errors, such as a
// rejected token, are returned. The in-process path holds the daemon lock at
// lockPath for the session so a daemon cache never sits beside it.
func OpenWithFallback(
	dial func() (*HTTPCaller, error),
	openStore func() (*viewed.Store, error),
	lockPath string,
) (Session, error) {
	if dial != nil {
		caller, err := dial()
		if err == nil {
			return Session{
				Client: NewClient(caller),
				Daemon: caller,
				close:  caller.Close,
			}, nil
		}
		if !errors.Is(err, ErrDaemonUnavailable) {
			return Session{}, fmt.Errorf("connect to daemon: %w", err)
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open viewed store: no store opener configured")
	}
	lock, err := AcquireLocal(lockPath)
	if err != nil {
		return Session{}, err
	}
	store, err := openStore()
	if err != nil {
		_ = lock.Release()
		return Session{}, fmt.Errorf("open viewed store: %w", err)
	}
	f, err := facade.New(store, nil)
	if err != nil {
		_ = store.Close()
		_ = lock.Release()
		return Session{}, err
	}
	return Session{
		Client: NewClient(NewLocalCaller(f)),
		close: func() error {
			err := store.Close()
			return errors.Join(err, lock.Release())
		},
	}, nil
}
