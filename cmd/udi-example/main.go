// Command udi-example is a minimal debuggee that attaches the udi runtime,
// spins a worker thread that hits a breakpoint checkpoint in a loop, and
// exits cleanly. It exists to exercise internal/lifecycle end to end the
// way the teacher's cmd/ublk-mem exercises internal/queue end to end.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/behrlich/udi-agent"
	"github.com/behrlich/udi-agent/internal/logging"
	"github.com/behrlich/udi-agent/internal/wire"
)

func main() {
	var (
		verbose  = flag.Bool("v", false, "Verbose output")
		rootDir  = flag.String("root", "", "UDI root directory (default: UDI_ROOT_DIR or /tmp/udi)")
		workerNs = flag.Int("workers", 1, "Number of worker threads to spawn beyond the main thread")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	proc, err := udi.Init(&udi.Config{
		RootDir: *rootDir,
		Arch:    wire.ArchX86_64,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to attach udi runtime", "error", err)
		os.Exit(1)
	}
	logger.Info("udi runtime attached", "pid", proc.PID())

	dones := make([]<-chan struct{}, 0, *workerNs)
	for i := 0; i < *workerNs; i++ {
		dones = append(dones, proc.NewThread(worker))
	}
	for _, d := range dones {
		<-d
	}

	logger.Info("udi-example exiting")
	proc.Exit(0)
}

// worker is the payload a spawned thread runs. It checkpoints periodically
// with a placeholder register snapshot whose PC is 0, so the runtime only
// stops it for a breakpoint installed at address 0, then returns.
func worker(t *udi.Thread) {
	for i := 0; i < 5; i++ {
		pc := uint64(0) // a real debuggee would capture its own PC here
		regs := wire.RegisterContext{Arch: wire.ArchX86_64, PC: pc}
		_ = t.Checkpoint(regs)
		time.Sleep(10 * time.Millisecond)
	}
}
