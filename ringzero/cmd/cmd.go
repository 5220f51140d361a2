// Copyright 2026 The ringzero Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package cmd holds implementations of the ringzero commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
	"ringzero.dev/ringzero/pkg/machine"
	"ringzero.dev/ringzero/ringzero/config"
)

// metricsLockTimeout bounds the wait for another run writing the same
// metrics file.
const metricsLockTimeout = 5 * time.Second

// withTimeout bounds ctx by d if d is non-zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d == 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// machineConfig returns the machine configuration shared by commands.
func machineConfig(conf *config.Config) machine.Config {
	return machine.Config{
		TimerHz:       conf.TimerHz,
		BootStackSize: conf.BootStackSize,
	}
}

// waitStatus converts a machine exit to the status ringzero exits with.
// Exits that carry no status are reported as 1.
func waitStatus(exit machine.Exit) unix.WaitStatus {
	status := exit.Status()
	if status < 0 {
		status = 1
	}
	return unix.WaitStatus((status & 0xff) << 8)
}

// writeMetrics writes m's metrics to path, holding a lock on path.lock so
// that concurrent runs do not interleave.
func writeMetrics(ctx context.Context, path string, m *machine.Machine) error {
	if path == "" {
		return nil
	}
	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(ctx, metricsLockTimeout)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(50*time.Millisecond), ctx)
	op := func() error {
		locked, err := lock.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !locked {
			return fmt.Errorf("%s is locked", lock.Path())
		}
		return nil
	}
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("locking metrics file %q: %w", path, err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening metrics file: %w", err)
	}
	if err := m.WriteMetrics(f); err != nil {
		f.Close()
		return fmt.Errorf("writing metrics file %q: %w", path, err)
	}
	return f.Close()
}
