//go:build linux

package threadmgr

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/moneytech/pointmon/internal/logging"
)

// selfpipeInit creates the manager's internal pipe, once. The pipe's write end
// is fed by the relay goroutines InstallSignalHandler starts (one per
// installed signal, each reading its own os/signal.Notify channel); the read
// end is drained exclusively by mgrLoop, so only one goroutine ever invokes a
// registered callback.
func (m *Manager) selfpipeInit() {
	m.pipeOnce.Do(func() {
		r, w, err := pipe2NonBlocking()
		if err != nil {
			logging.Log(logging.Fatal, " Error: could not create self-pipe")
			os.Exit(-1)
		}
		m.pipeR, m.pipeW = r, w
	})
}

// pipe2NonBlocking creates a pipe with the write end set non-blocking, so a
// burst of signals can never stall delivery the way a blocking write could.
func pipe2NonBlocking() (r, w int, err error) {
	var fds [2]int
	if err = unix.Pipe2(fds[:], 0); err != nil {
		return 0, 0, err
	}
	if err = unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return 0, 0, err
	}
	return fds[0], fds[1], nil
}

// mgrLoop is the single goroutine permitted to invoke a registered signal
// callback. It never exits except when the pipe is unexpectedly closed.
func (m *Manager) mgrLoop() {
	buf := make([]byte, 1)
	for {
		n, err := unix.Read(m.pipeR, buf)
		if err != nil || n <= 0 {
			logging.Log(logging.Warning, " [THDLIB] Pipe Closed")
			return
		}
		signum := int(buf[0])

		m.sigMu.Lock()
		handler, ok := m.sigHandlers.Get(signum)
		m.sigMu.Unlock()

		if !ok {
			logging.Log(logging.Fatal, " Error: Unexpected signal: %d", signum)
			continue
		}
		handler()
	}
}

var notifyMu sync.Mutex

// InstallSignalHandler registers handler to run (on the manager's dedicated
// goroutine) whenever signum is delivered to this process. signum must be
// <= MaxSignal, matching the byte-sized pipe payload. Installing a handler
// for a signal already registered replaces the prior handler.
func (m *Manager) InstallSignalHandler(signum int, handler func()) bool {
	if signum > MaxSignal {
		logging.Log(logging.Warning, " Error: Cannot handle signals > %d (given %d)", MaxSignal, signum)
		return false
	}

	notifyMu.Lock()
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, unix.Signal(signum))
	go m.funnelSignal(signum, ch)
	notifyMu.Unlock()

	m.sigMu.Lock()
	m.sigHandlers.Insert(signum, handler)
	m.sigMu.Unlock()
	return true
}

// funnelSignal relays each delivery of one signal from the os/signal channel
// into the self-pipe as a single byte. Writes are best-effort and
// non-blocking; a saturated pipe simply drops a redundant wakeup, since the
// manager goroutine only needs to know "something happened", not how many
// times.
func (m *Manager) funnelSignal(signum int, ch chan os.Signal) {
	for range ch {
		b := [1]byte{byte(signum & 0xFF)}
		_, _ = unix.Write(m.pipeW, b[:])
	}
}

// UninstallSignalHandler removes the callback registered for signum. Future
// deliveries of that signal still reach the manager goroutine (Go's runtime
// does not support per-channel selective unmasking of a single signal
// without affecting other consumers), but with no handler found they are
// logged as unexpected instead of dispatched.
func (m *Manager) UninstallSignalHandler(signum int) bool {
	if signum > MaxSignal {
		logging.Log(logging.Warning, " Error: Cannot handle signals > %d (given %d)", MaxSignal, signum)
		return false
	}
	m.sigMu.Lock()
	defer m.sigMu.Unlock()
	if m.sigHandlers.Len() == 0 {
		logging.Log(logging.Warning, " Error: no signals tracked yet")
		return false
	}
	return m.sigHandlers.Delete(signum)
}
