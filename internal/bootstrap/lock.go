// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("workspace is locked by another process")

// Lock is a held flock on a lock file.
type Lock struct {
	path string
	file *os.File
}

// LockInfo describes the lock holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// AcquireLock takes an exclusive, non-blocking lock on path.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, errors.WithDetailf(ErrLocked, "lock file %s", path)
		}
		return nil, errors.Wrap(err, "flock")
	}

	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "truncate lock file")
	}
	if _, err := fmt.Fprintf(f, "%d %d\n", os.Getpid(), time.Now().Unix()); err != nil {
		_ = f.Close()
		return nil, errors.Wrap(err, "write lock file")
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. It is safe to call more than once.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}

// ReadLockInfo reads the holder recorded in the lock file at path. It
// returns nil when there is no lock file.
func ReadLockInfo(path string) (*LockInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read lock file")
	}

	var pid int
	var ts int64
	if _, err := fmt.Sscanf(string(data), "%d %d", &pid, &ts); err != nil {
		return nil, errors.Wrap(err, "parse lock info")
	}
	return &LockInfo{PID: pid, StartedAt: time.Unix(ts, 0)}, nil
}
