// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rpc

import (
	"strconv"
	"sync/atomic"
)

// idCounter is a process-wide monotonic counter, prefixed per Pair with the
// Pair's own name. The prefix aids log correlation across concurrently
// running Pairs; uniqueness is only required within a single Pair's set of
// outstanding waiters, but a shared counter gets that for free.
var idCounter atomic.Uint64

// nextID returns the next correlation id for outbound messages sent by a
// Pair named name, of the form "<name>:<n>".
func nextID(name string) string {
	n := idCounter.Add(1)
	return name + ":" + strconv.FormatUint(n, 10)
}
