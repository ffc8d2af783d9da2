// Package dblock serialises database-backed test packages that share one
// Postgres instance. The lock is a loopback TCP listener, so it also holds
// across the separate processes go test starts per package.
package dblock

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

const (
	defaultLockAddr = "127.0.0.1:45433"
	lockAddrEnv     = "BANKING_TEST_DB_LOCK_ADDR"
	pollInterval    = 50 * time.Millisecond
	maxWait         = 5 * time.Minute
)

// Acquire blocks until the shared database lock is held and returns its
// release function. Calling release more than once is safe.
func Acquire() func() {
	addr := os.Getenv(lockAddrEnv)
	if addr == "" {
		addr = defaultLockAddr
	}
	deadline := time.Now().Add(maxWait)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			var once sync.Once
			return func() { once.Do(func() { _ = ln.Close() }) }
		}
		if time.Now().After(deadline) {
			panic(fmt.Sprintf("dblock: lock %s still held after %s: %v", addr, maxWait, err))
		}
		time.Sleep(pollInterval)
	}
}
