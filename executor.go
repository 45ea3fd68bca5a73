/**
 * Call signaling orchestrator for federated messaging networks.
 * Copyright (C) 2026 CallGrid
 *
 * @license GNU AGPL version 3 or any later version
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */
package signaling

import (
	"reflect"
	"runtime"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// SerialExecutor runs submitted functions one after the other on a single
// goroutine, maintaining submission order. All call session and registry
// mutations are funneled through one SerialExecutor because call backends
// are generally not safe for concurrent mutation.
type SerialExecutor struct {
	log *zap.Logger

	queue     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

func NewSerialExecutor(log *zap.Logger, queueSize int) *SerialExecutor {
	if queueSize < 0 {
		queueSize = 0
	}
	result := &SerialExecutor{
		log: log,

		queue:  make(chan func(), queueSize),
		closed: make(chan struct{}),
	}
	go result.run()
	return result
}

func (e *SerialExecutor) run() {
	defer close(e.closed)

	for {
		f := <-e.queue
		if f == nil {
			break
		}

		f()
	}
}

func functionName(i any) string {
	return runtime.FuncForPC(reflect.ValueOf(i).Pointer()).Name()
}

// Execute queues f to run on the executor goroutine. Submitting to a
// closed executor is logged and ignored.
func (e *SerialExecutor) Execute(f func()) {
	defer func() {
		if err := recover(); err != nil {
			e.log.Warn("Could not submit function",
				zap.String("function", functionName(f)),
				zap.Any("error", err),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	e.queue <- f
}

func (e *SerialExecutor) Close() {
	e.closeOnce.Do(func() {
		close(e.queue)
	})
}

func (e *SerialExecutor) waitForStop() {
	<-e.closed
}
