// Command producer reads a timed script of point installs/invalidations and
// plays it into a shared memory region, restarting the whole sequence from
// the top whenever it receives SIGHUP and exiting cleanly on SIGINT/SIGQUIT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moneytech/pointmon/internal/config"
	"github.com/moneytech/pointmon/internal/logging"
	"github.com/moneytech/pointmon/internal/pointpayload"
	"github.com/moneytech/pointmon/internal/script"
	"github.com/moneytech/pointmon/internal/shm"
	"github.com/moneytech/pointmon/internal/threadmgr"
)

// sleepCancelable sleeps for n seconds, returning false early if ctx is
// cancelled — the task delay is this worker's designated cancellation point.
func sleepCancelable(ctx context.Context, n int) bool {
	select {
	case <-time.After(time.Duration(n) * time.Second):
		return true
	case <-ctx.Done():
		return false
	}
}

// shmKey is the fixed SysV IPC key the producer and observer rendezvous on.
const shmKey = 8675309

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("producer", flag.ContinueOnError)
	quiet := fs.Bool("q", false, "suppress console log mirroring")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Please provide a file path as an argument.")
		logging.Log(logging.Fatal, " [MAIN] Invalid number of arguments given")
		return 1
	}
	scriptPath := fs.Arg(0)

	if err := logging.SetLogfile("/var/log/producer.log"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file: %v\n", err)
	}
	logging.AlsoPrintStdout(!*quiet)

	mgr := threadmgr.Default()
	segments := shm.Default()

	// single-writer scenario: this process is the only one installing data,
	// so cross-process locking around its own writes is unnecessary.
	segments.Configure(config.Segment{UseSemaphores: false})

	logging.Log(logging.Info, " [MAIN] Started producer")

	tasks, parseErrs := script.ParseFile(scriptPath)
	for _, e := range parseErrs {
		logging.Log(logging.Warning, " [MAIN] %v", e)
	}
	logging.Log(logging.Info, " [MAIN] Completed processing input file")
	for _, t := range tasks {
		pointpayload.ShowTask(t)
	}

	seg, err := segments.Connect(shmKey, pointpayload.MaxPoints*pointpayload.PointSize)
	if err != nil {
		logging.Log(logging.Fatal, " [MAIN] Error: failed to create memory segment: %v", err)
		return 1
	}

	var (
		mu        sync.Mutex
		cond      = sync.NewCond(&mu)
		reinstall bool
		wakeup    bool
	)

	signalWake := func(setReinstall bool) {
		mu.Lock()
		if setReinstall {
			reinstall = true
		}
		wakeup = true
		mu.Unlock()
		cond.Broadcast()
	}

	mgr.InstallSignalHandler(int(unix.SIGINT), func() {
		logging.Log(logging.Warning, " [MAIN] Got SIGINT or SIGQUIT! Detach, Destroy and exit...")
		mgr.KillAll()
		signalWake(false)
	})
	mgr.InstallSignalHandler(int(unix.SIGQUIT), func() {
		logging.Log(logging.Warning, " [MAIN] Got SIGINT or SIGQUIT! Detach, Destroy and exit...")
		mgr.KillAll()
		signalWake(false)
	})
	mgr.InstallSignalHandler(int(unix.SIGHUP), func() {
		logging.Log(logging.Warning, " [MAIN] Got SIGHUP! Clear segment and re-install...")
		for i := range seg.Bytes {
			seg.Bytes[i] = 0
		}
		signalWake(true)
	})

	for {
		mu.Lock()
		reinstall = false
		wakeup = false
		mu.Unlock()

		h := mgr.Execute(func(ctx context.Context) {
			runWorker(ctx, segments, seg, tasks)
			mu.Lock()
			wakeup = true
			mu.Unlock()
			cond.Broadcast()
		})
		if h == threadmgr.InvalidHandle {
			logging.Log(logging.Fatal, " [MAIN] Error: failed to create thread")
			break
		}

		mu.Lock()
		for !wakeup {
			cond.Wait()
		}
		shouldReinstall := reinstall
		mu.Unlock()

		mgr.KillAll()
		if err := mgr.WaitAll(); err != nil {
			logging.Log(logging.Fatal, " [MAIN] Error: failed to wait for threads: %v", err)
		}

		if !shouldReinstall {
			break
		}
	}

	mgr.UninstallSignalHandler(int(unix.SIGHUP))

	destroyErr := segments.Destroy(shmKey)
	logging.Log(logging.Info, " [MAIN] Destroyed %d (error:%v)", shmKey, destroyErr)

	logging.Log(logging.Info, " [MAIN] Completed!")
	return 0
}

// runWorker plays tasks in order, sleeping each one's delay (a cancellation
// point) before mutating the region under the segment lock.
func runWorker(ctx context.Context, segments *shm.Manager, seg *shm.Segment, tasks []pointpayload.PointTask) {
	for _, task := range tasks {
		if !sleepCancelable(ctx, task.SleepSeconds()) {
			return
		}

		if !segments.Lock(shmKey) {
			logging.Log(logging.Warning, " Skipping task due to segment lock error.")
			continue
		}
		if task.Invalidating() {
			pointpayload.Invalidate(seg.Bytes, task.Index)
		} else {
			pointpayload.Install(seg.Bytes, task.Index, task.Point)
		}
		pointpayload.ShowPoints(seg.Bytes, pointpayload.MaxPoints)
		segments.Unlock(shmKey)
	}
}
