package singreg

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// reentrantMutex is a mutual exclusion lock that can be re-acquired by the
// goroutine that already holds it. The creation mutex has to work this way: a
// factory running under the lock may call back into the registry to resolve
// other names, which is a nested acquisition by the same logical caller. Other
// goroutines block as with a plain sync.Mutex.
//
// The holder is identified by goroutine ID, so a factory that hands work to a
// new goroutine and waits for it will deadlock just like it would with a plain
// mutex. Factories are expected to run synchronously.
type reentrantMutex struct {
	mu    sync.Mutex
	owner atomic.Int64
	depth int
}

func (m *reentrantMutex) Lock() {
	gid := goroutineID()
	if m.owner.Load() == gid {
		// Nested acquisition by the holder; depth is only ever touched by
		// the goroutine that owns the lock.
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(gid)
	m.depth = 1
}

func (m *reentrantMutex) Unlock() {
	if m.owner.Load() != goroutineID() {
		panic("singreg: unlock of creation mutex by a goroutine that does not hold it")
	}
	m.depth--
	if m.depth == 0 {
		m.owner.Store(0)
		m.mu.Unlock()
	}
}

// goroutineID returns the numeric ID of the calling goroutine by parsing the
// header line of its stack trace, which has the form "goroutine N [status]:".
// There is deliberately no faster way to get at this; the result is only used
// as an owner identity for the re-entrant creation mutex.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		panic(fmt.Sprintf("singreg: malformed stack header: %q", buf[:n]))
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("singreg: malformed goroutine ID: %q", fields[1]))
	}
	return id
}
