//go:build linux

// Package threadmgr manages a bounded set of concurrently running worker
// goroutines and funnels OS signals to user-registered callbacks through a
// single dedicated goroutine: async-signal-safe code does as little as
// possible, and everything else (logging, table walks, string formatting)
// runs later on a safe goroutine fed by a self-pipe.
//
// Go's runtime already performs the delivery half of that trick internally,
// so this package starts from os/signal.Notify (the supported, safe entry
// point) and layers an explicit pipe and one dedicated reader goroutine —
// the only code ever allowed to invoke a registered callback — on top of it.
package threadmgr

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/moneytech/pointmon/internal/config"
	"github.com/moneytech/pointmon/internal/ipcerr"
	"github.com/moneytech/pointmon/internal/logging"
	"github.com/moneytech/pointmon/internal/pointstore"
)

// MaxThreads bounds how many worker goroutines the manager tracks at once.
const MaxThreads = 50

// MaxSignal is the highest signal number this manager will funnel — it must
// fit in the single byte written across the self-pipe.
const MaxSignal = 15

// Handle identifies one tracked goroutine. InvalidHandle is returned on any
// failure to create a worker.
type Handle int

// InvalidHandle is returned by Execute on failure.
const InvalidHandle Handle = -1

// State is the lifecycle stage of a tracked goroutine.
type State int

const (
	Pending State = iota
	Running
	Cancelled
	Finished
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Cancelled:
		return "Cancelled"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Func is a worker function. It receives a context that is cancelled when
// Kill is called against its handle; well-behaved workers check ctx.Err() at
// their own designated cancellation points rather than being stopped
// preemptively. A worker may also call Exit from inside fn to end early;
// Exit does not return.
type Func func(ctx context.Context)

type threadInfo struct {
	mu     sync.Mutex
	handle Handle
	name   string
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks a bounded set of worker goroutines and the signal callbacks
// registered against it. Use Default for the process-wide singleton.
type Manager struct {
	mu      sync.Mutex
	threads *pointstore.Table[*threadInfo]

	sigMu       sync.Mutex
	sigHandlers *pointstore.Table[func()]

	pipeOnce sync.Once
	pipeR    int
	pipeW    int

	nameSeq int
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide thread manager, installing the default
// SIGINT/SIGQUIT handlers (subject to config.ThreadManager) on first use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = &Manager{
			threads:     pointstore.New[*threadInfo](MaxThreads),
			sigHandlers: pointstore.New[func()](MaxSignal),
		}
		defaultMgr.init(config.DefaultThreadManager())
	})
	return defaultMgr
}

func (m *Manager) init(cfg config.ThreadManager) {
	m.selfpipeInit()
	go m.mgrLoop()

	if cfg.HandleSigQuit {
		m.InstallSignalHandler(int(unix.SIGQUIT), func() {
			logging.Log(logging.Info, " Signaled to kill all threads (SIGQUIT)")
			m.KillAll()
		})
	} else {
		logging.Log(logging.Info, " Not installing SIGQUIT handler.")
	}

	if cfg.HandleSigInt {
		m.InstallSignalHandler(int(unix.SIGINT), func() {
			logging.Log(logging.Info, " Signaled to print thread status (SIGINT)")
			m.showAllThreads()
		})
	} else {
		logging.Log(logging.Info, " Not installing SIGINT handler.")
	}
}

func (m *Manager) showAllThreads() {
	logging.Log(logging.Warning, " Managed Threads:")
	m.threads.Each(func(handle int, info *threadInfo) {
		info.mu.Lock()
		logging.Log(logging.Warning, "   <Thread>(handle:%d name:%s state:%s)", info.handle, info.name, info.state)
		info.mu.Unlock()
	})
}

func nameFor(seq int) string {
	const charset = "QWERTYUIOPASDFGHJKLZXCVBNM1234567890"
	name := make([]byte, 6)
	for i := range name {
		name[i] = charset[(seq*7+i*13)%len(charset)]
	}
	return string(name)
}

// Execute starts fn in a new goroutine and returns a handle for it, or
// InvalidHandle if the manager is already tracking MaxThreads workers.
func (m *Manager) Execute(fn Func) Handle {
	if fn == nil {
		logging.Log(logging.Warning, " Error: given nil function to Execute()!")
		return InvalidHandle
	}

	m.mu.Lock()
	handle := Handle(InvalidHandle)
	for i := 0; i < MaxThreads; i++ {
		if _, ok := m.threads.Get(i); !ok {
			handle = Handle(i)
			break
		}
	}
	if handle == InvalidHandle {
		m.mu.Unlock()
		logging.Log(logging.Warning, " Error: too many threads already managed!")
		return InvalidHandle
	}

	ctx, cancel := context.WithCancel(context.Background())
	info := &threadInfo{
		handle: handle,
		name:   nameFor(m.nameSeq),
		state:  Pending,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.nameSeq++
	m.threads.Insert(int(handle), info)
	m.mu.Unlock()

	go m.runWorker(ctx, info, fn)

	return handle
}

func (m *Manager) runWorker(ctx context.Context, info *threadInfo, fn Func) {
	info.mu.Lock()
	if info.state == Pending {
		info.state = Running
	}
	started := info.state
	info.mu.Unlock()
	logging.Log(logging.Info, " [THDLIB] Created <Thread>(handle:%d name:%s state:%s)", info.handle, info.name, started)

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(exitSentinel); !ok {
				panic(r)
			}
		}
		info.mu.Lock()
		if info.state != Cancelled {
			info.state = Finished
		}
		state := info.state
		info.mu.Unlock()
		logging.Log(logging.Info, " [THDLIB] Exiting <Thread>(handle:%d name:%s state:%s)", info.handle, info.name, state)
		close(info.done)
	}()

	fn(context.WithValue(ctx, handleKey{}, info.handle))
}

type handleKey struct{}
type exitSentinel struct{}

// HandleFromContext recovers the handle a worker was started with.
func HandleFromContext(ctx context.Context) (Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(Handle)
	return h, ok
}

// Exit ends the calling worker immediately, marking it Finished. This call
// never returns to its caller.
func Exit(ctx context.Context) {
	panic(exitSentinel{})
}

// Wait blocks until the worker identified by h terminates (naturally, via
// Exit, or after Kill), then purges its tracked state. Returns an error if h
// is not a handle this manager is tracking.
func (m *Manager) Wait(h Handle) error {
	m.mu.Lock()
	info, ok := m.threads.Get(int(h))
	m.mu.Unlock()
	if !ok {
		return ipcerr.New("Wait", ipcerr.CodeInvalidHandle, fmt.Sprintf("unknown thread handle %d", h))
	}

	<-info.done

	m.mu.Lock()
	m.threads.Delete(int(h))
	m.mu.Unlock()
	return nil
}

// WaitAll blocks until every currently tracked worker terminates. It returns
// an error if the manager was tracking no workers at all.
func (m *Manager) WaitAll() error {
	m.mu.Lock()
	var handles []int
	m.threads.Each(func(handle int, _ *threadInfo) { handles = append(handles, handle) })
	m.mu.Unlock()

	if len(handles) == 0 {
		return ipcerr.New("WaitAll", ipcerr.CodeInvalidHandle, "no threads are being managed")
	}
	for _, h := range handles {
		_ = m.Wait(Handle(h))
	}
	return nil
}

// Kill requests cancellation of the worker identified by h by cancelling its
// context. As with pthread_cancel, this is cooperative: the worker is only
// actually stopped once it observes ctx.Done() at one of its own
// cancellation points. Kill fails if h is unknown or already terminal.
func (m *Manager) Kill(h Handle) error {
	m.mu.Lock()
	info, ok := m.threads.Get(int(h))
	m.mu.Unlock()
	if !ok {
		return ipcerr.New("Kill", ipcerr.CodeInvalidHandle, fmt.Sprintf("unknown thread handle %d", h))
	}

	info.mu.Lock()
	defer info.mu.Unlock()
	if info.state == Cancelled || info.state == Finished {
		logging.Log(logging.Info, " [THDLIB] Kill failed (already exited) <Thread>(handle:%d)", h)
		return ipcerr.New("Kill", ipcerr.CodeInvalidHandle, "thread already terminal")
	}
	info.cancel()
	info.state = Cancelled
	logging.Log(logging.Info, " [THDLIB] Killed <Thread>(handle:%d name:%s)", info.handle, info.name)
	return nil
}

// KillAll cancels every currently tracked worker. Returns an error if no
// workers were being tracked.
func (m *Manager) KillAll() error {
	m.mu.Lock()
	var handles []int
	m.threads.Each(func(handle int, _ *threadInfo) { handles = append(handles, handle) })
	m.mu.Unlock()

	if len(handles) == 0 {
		return ipcerr.New("KillAll", ipcerr.CodeInvalidHandle, "no threads are being managed")
	}
	ok := false
	for _, h := range handles {
		if m.Kill(Handle(h)) == nil {
			ok = true
		}
	}
	if !ok {
		return ipcerr.New("KillAll", ipcerr.CodeInvalidHandle, "no thread could be killed")
	}
	return nil
}

// State reports the current lifecycle state of handle h, for diagnostics.
func (m *Manager) State(h Handle) (State, bool) {
	m.mu.Lock()
	info, ok := m.threads.Get(int(h))
	m.mu.Unlock()
	if !ok {
		return 0, false
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.state, true
}
