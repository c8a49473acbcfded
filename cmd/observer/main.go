// Command observer periodically reports the aggregate contents of the
// shared memory region the producer maintains, until its time budget
// elapses or it is signalled to stop.
package main

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moneytech/pointmon/internal/config"
	"github.com/moneytech/pointmon/internal/logging"
	"github.com/moneytech/pointmon/internal/pointpayload"
	"github.com/moneytech/pointmon/internal/shm"
	"github.com/moneytech/pointmon/internal/threadmgr"
)

const (
	shmKey          = 8675309
	defaultDuration = 600
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	seconds := defaultDuration
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			logging.Log(logging.Fatal, " [MAIN] Invalid argument given")
			fmt.Fprintln(os.Stderr, "Invalid argument: given seconds should be > 0")
			return -1
		}
		seconds = n
	}

	if err := logging.SetLogfile("/var/log/observer.log"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not open log file: %v\n", err)
	}
	logging.AlsoPrintStdout(true)

	mgr := threadmgr.Default()
	segments := shm.Default()
	segments.Configure(config.Segment{UseSemaphores: false})

	var running int32 = 1
	stop := func() {
		atomic.StoreInt32(&running, 0)
		logging.Log(logging.Warning, " [MAIN] Got SIGINT or SIGQUIT! Detaching and exiting...")
	}
	mgr.InstallSignalHandler(int(unix.SIGINT), stop)
	mgr.InstallSignalHandler(int(unix.SIGQUIT), stop)

	seg, err := segments.Connect(shmKey, pointpayload.MaxPoints*pointpayload.PointSize)
	if err != nil {
		logging.Log(logging.Fatal, " [MAIN] Error: failed to create memory segment: %v", err)
		return 1
	}

	logging.Log(logging.Info, " [MAIN] Monitoring for the next %d seconds", seconds)
	for remaining := seconds; remaining > 0 && atomic.LoadInt32(&running) == 1; remaining-- {
		logging.Log(logging.Info, " [MAIN] %d seconds left", remaining)

		if !segments.Lock(shmKey) {
			logging.Log(logging.Warning, " [MAIN] The lock has been lost! Accessing the shared memory segment is potentially dangerous.")
			pointpayload.ShowPoints(seg.Bytes, pointpayload.MaxPoints)
		} else {
			pointpayload.ShowPoints(seg.Bytes, pointpayload.MaxPoints)
			segments.Unlock(shmKey)
		}

		time.Sleep(time.Second)
	}

	logging.Log(logging.Info, " [MAIN] Detaching from %d", shmKey)
	segments.Detach(seg)

	logging.Log(logging.Info, " [MAIN] Completed!")
	return 0
}
