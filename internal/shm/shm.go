//go:build linux

// Package shm manages SysV shared memory segments and their paired counting
// semaphores. golang.org/x/sys/unix ships the syscall numbers for SysV IPC
// but, on this vendored version, no high-level wrappers the way it does for
// mmap/ioctl, so this package calls syscall.Syscall/Syscall6 directly against
// unix.SYS_* constants for shmget/shmat/shmdt/shmctl/semget/semop/semctl.
package shm

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/moneytech/pointmon/internal/config"
	"github.com/moneytech/pointmon/internal/ipcerr"
	"github.com/moneytech/pointmon/internal/logging"
	"github.com/moneytech/pointmon/internal/pointstore"
)

const (
	permCreate = 0644
	ipcCreat   = unix.IPC_CREAT
	ipcRmid    = unix.IPC_RMID
)

// segmentDescriptor tracks one key's shmID/semID and the live attachments
// created from it, so Detach/Destroy can find every mapping to tear down.
type segmentDescriptor struct {
	key         int
	shmID       int
	semID       int
	size        int
	useSem      bool
	attachments *pointstore.List[uintptr]
}

// Manager owns every segment this process has connected to. A process keeps
// exactly one Manager; use Default for the process-wide singleton.
type Manager struct {
	mu         sync.Mutex
	segments   *pointstore.Table[*segmentDescriptor]
	useSem     bool
}

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
)

// Default returns the process-wide segment manager, constructing it on first
// use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultMgr = &Manager{segments: pointstore.New[*segmentDescriptor](32)}
		defaultMgr.Configure(config.DefaultSegment())
	})
	return defaultMgr
}

// UseSemaphores toggles whether subsequent Connect calls create/open a
// paired semaphore for locking. Existing connections are unaffected.
func (m *Manager) UseSemaphores(enable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.useSem = enable
}

// Configure applies cfg to subsequent Connect calls, the same as
// UseSemaphores(cfg.UseSemaphores).
func (m *Manager) Configure(cfg config.Segment) {
	m.UseSemaphores(cfg.UseSemaphores)
}

// Segment is a live mapping of a shared memory region into this process's
// address space.
type Segment struct {
	Key   int
	Bytes []byte
	addr  uintptr
}

// Connect attaches to (creating if necessary) the segment identified by key,
// sized size bytes, and optionally its paired semaphore. Reattaching with the
// same key returns a fresh independent mapping of the same underlying
// segment.
func (m *Manager) Connect(key, size int) (*Segment, error) {
	m.mu.Lock()
	useSem := m.useSem
	desc, ok := m.segments.Get(key)
	m.mu.Unlock()

	shmID, _, errno := syscall.Syscall(unix.SYS_SHMGET, uintptr(key), uintptr(size), uintptr(ipcCreat|permCreate))
	if errno != 0 {
		logging.Log(logging.Fatal, " Error: shmget failed for key %d: %v", key, errno)
		return nil, ipcerr.FromErrno("Connect", errno).WithKey(key)
	}

	addr, _, errno := syscall.Syscall(unix.SYS_SHMAT, shmID, 0, 0)
	if errno != 0 {
		logging.Log(logging.Fatal, " Error: shmat failed for key %d: %v", key, errno)
		return nil, ipcerr.FromErrno("Connect", errno).WithKey(key)
	}

	var semID int
	if useSem {
		id, _, errno := syscall.Syscall(unix.SYS_SEMGET, uintptr(key), 1, uintptr(ipcCreat|permCreate))
		if errno != 0 {
			logging.Log(logging.Fatal, " Error: semget failed for key %d: %v", key, errno)
			syscall.Syscall(unix.SYS_SHMDT, addr, 0, 0)
			return nil, ipcerr.FromErrno("Connect", errno).WithKey(key)
		}
		semID = int(id)
		if err := initSemaphore(semID); err != nil {
			syscall.Syscall(unix.SYS_SHMDT, addr, 0, 0)
			return nil, err
		}
	}

	m.mu.Lock()
	if !ok {
		desc = &segmentDescriptor{
			key:         key,
			shmID:       int(shmID),
			semID:       semID,
			size:        size,
			useSem:      useSem,
			attachments: pointstore.NewList[uintptr](),
		}
		m.segments.Insert(key, desc)
	}
	desc.attachments.PushBack(addr)
	m.mu.Unlock()

	logging.Log(logging.Info, " Connected to shared segment (key:%d, shmid:%d, size:%d)", key, shmID, size)

	bytes := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &Segment{Key: key, Bytes: bytes, addr: addr}, nil
}

// Detach unmaps seg from this process's address space without destroying the
// underlying segment — other attached processes are unaffected.
func (m *Manager) Detach(seg *Segment) error {
	_, _, errno := syscall.Syscall(unix.SYS_SHMDT, seg.addr, 0, 0)
	if errno != 0 {
		return ipcerr.FromErrno("Detach", errno).WithKey(seg.Key)
	}

	m.mu.Lock()
	if desc, ok := m.segments.Get(seg.Key); ok {
		desc.attachments.Remove(func(a uintptr) bool { return a == seg.addr })
	}
	m.mu.Unlock()

	logging.Log(logging.Info, " Detached from shared segment (key:%d)", seg.Key)
	return nil
}

// Destroy detaches every address this process still holds on key, then marks
// the segment for removal and removes its paired semaphore if one was
// created. If the segment was already removed by another process, the
// descriptor is still erased but Destroy reports CodeSegmentGone so callers
// can tell the two cases apart.
func (m *Manager) Destroy(key int) error {
	m.mu.Lock()
	desc, ok := m.segments.Get(key)
	m.mu.Unlock()
	if !ok {
		return ipcerr.New("Destroy", ipcerr.CodeNotFound, fmt.Sprintf("no segment known for key %d", key)).WithKey(key)
	}

	var addrs []uintptr
	desc.attachments.Each(func(a uintptr) { addrs = append(addrs, a) })
	for _, addr := range addrs {
		if _, _, errno := syscall.Syscall(unix.SYS_SHMDT, addr, 0, 0); errno != 0 {
			logging.Log(logging.Warning, " Error: shmdt failed while destroying key %d: %v", key, errno)
		}
	}
	desc.attachments.Clear()

	eraseDescriptor := func() {
		m.mu.Lock()
		m.segments.Delete(key)
		m.mu.Unlock()
	}

	_, _, errno := syscall.Syscall(unix.SYS_SHMCTL, uintptr(desc.shmID), uintptr(ipcRmid), 0)
	if errno != 0 && errno != unix.EINVAL {
		eraseDescriptor()
		return ipcerr.FromErrno("Destroy", errno).WithKey(key)
	}
	var gone error
	if errno == unix.EINVAL {
		logging.Log(logging.Warning, " segment for key %d was already removed", key)
		gone = ipcerr.New("Destroy", ipcerr.CodeSegmentGone, fmt.Sprintf("segment for key %d was already removed", key)).WithKey(key)
	}

	if desc.useSem {
		_, _, errno = syscall.Syscall(unix.SYS_SEMCTL, uintptr(desc.semID), 0, unix.IPC_RMID)
		if errno != 0 && errno != unix.EINVAL {
			eraseDescriptor()
			return ipcerr.FromErrno("Destroy", errno).WithKey(key)
		}
	}

	eraseDescriptor()
	if gone != nil {
		return gone
	}

	logging.Log(logging.Info, " Destroyed shared segment (key:%d)", key)
	return nil
}

// sembuf mirrors struct sembuf from <sys/sem.h>.
type sembuf struct {
	num int16
	op  int16
	flg int16
}

// initSemaphore sets a freshly created semaphore's value to 1 (unlocked).
// Racing creators both attempting this is harmless: the value always
// settles at 1.
func initSemaphore(semID int) error {
	_, _, errno := syscall.Syscall6(unix.SYS_SEMCTL, uintptr(semID), 0, unix.SETVAL, 1, 0, 0)
	if errno != 0 {
		return ipcerr.FromErrno("initSemaphore", errno)
	}
	return nil
}

// Lock acquires the semaphore paired with key, blocking until available.
// Lock is a no-op (always succeeds) if semaphores are disabled for this
// segment, but fails if key has no known segment at all — in particular,
// after Destroy(key) no further Lock/Unlock succeeds until a new Connect.
// Uses SEM_UNDO so a crashed holder's lock is released by the kernel.
func (m *Manager) Lock(key int) bool {
	m.mu.Lock()
	desc, ok := m.segments.Get(key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if !desc.useSem {
		return true
	}
	return semop(desc.semID, -1) == nil
}

// Unlock releases the semaphore paired with key. Unlock is a no-op (always
// succeeds) if semaphores are disabled for this segment, but fails if key
// has no known segment at all.
func (m *Manager) Unlock(key int) bool {
	m.mu.Lock()
	desc, ok := m.segments.Get(key)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if !desc.useSem {
		return true
	}
	return semop(desc.semID, 1) == nil
}

func semop(semID int, delta int16) error {
	op := sembuf{num: 0, op: delta, flg: unix.SEM_UNDO}
	_, _, errno := syscall.Syscall(unix.SYS_SEMOP, uintptr(semID), uintptr(unsafe.Pointer(&op)), 1)
	if errno != 0 {
		logging.Log(logging.Fatal, " Error: semop failed (semid:%d): %v", semID, errno)
		return ipcerr.FromErrno("semop", errno)
	}
	return nil
}
