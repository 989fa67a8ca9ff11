package main

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DataExMachina-dev/fiberstack-go/fiber"
	"github.com/DataExMachina-dev/fiberstack-go/fiberstack"
	"github.com/DataExMachina-dev/fiberstack-go/instrument"
	"github.com/DataExMachina-dev/fiberstack-go/internal/persist"
)

var (
	transferCall  = fiber.Location{TypeName: "demo.Transfer", MethodName: "Call", FileName: "transfer.go", Line: 21}
	transferCheck = fiber.Location{TypeName: "demo.Transfer", MethodName: "checkLimits", FileName: "transfer.go", Line: 48}
	ledgerAppend  = fiber.Location{TypeName: "demo.Ledger", MethodName: "Append", FileName: "ledger.go", Line: 33}
)

func demoRegistry() *instrument.Registry {
	r := instrument.NewRegistry()
	r.Register(instrument.TypeInfo{
		Name: "demo.Transfer",
		Kind: instrument.KindFlowLogic,
		Methods: []instrument.Method{
			{Name: "Call", Instrumented: true},
			{Name: "checkLimits", Instrumented: true, LocalsEliminated: true},
		},
	})
	r.Register(instrument.TypeInfo{
		Name:    "demo.Ledger",
		Methods: []instrument.Method{{Name: "Append", Instrumented: true}},
	})
	return r
}

// demoLedger is a value that may be persisted as is.
type demoLedger struct {
	Name    string `json:"name"`
	Entries int    `json:"entries"`
}

func newDemoCmd(flags *globalFlags) *cobra.Command {
	var tasks int
	var compression string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a few demo transfers that store snapshots of themselves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tasks < 1 {
				return fmt.Errorf("--tasks must be positive, got %d", tasks)
			}
			opts := []fiberstack.Option{fiberstack.WithErrorLogger(errorLogger("demo"))}
			if flags.dir != "" {
				opts = append(opts, fiberstack.WithSnapshotDir(flags.dir))
			}
			if compression != "" {
				c, err := persist.ParseCompression(compression)
				if err != nil {
					return err
				}
				opts = append(opts, fiberstack.WithCompression(c))
			}
			paths, err := runDemo(cmd.Context(), tasks, opts...)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&tasks, "tasks", 3, "number of transfers to run")
	cmd.Flags().StringVar(&compression, "compression", "", "snapshot compression (none or zstd)")
	return cmd
}

// runDemo runs n transfers on one scheduler. Each stores a snapshot from
// inside the ledger call and returns the stored paths in task order.
func runDemo(ctx context.Context, n int, opts ...fiberstack.Option) ([]string, error) {
	reg := demoRegistry()
	sched := fiber.NewScheduler(reg)
	e := fiberstack.NewExtractor(sched, reg, opts...)

	var mu sync.Mutex
	paths := make([]string, n)
	var firstErr error
	ledger := &demoLedger{Name: "main"}
	tasks := make([]*fiber.Task, 0, n)
	for i := 0; i < n; i++ {
		i := i
		id := fmt.Sprintf("transfer-%d", i)
		tasks = append(tasks, sched.Spawn(ctx, id, func(ctx context.Context, t *fiber.Task) {
			t.Enter(transferCall, id, 100*(i+1))
			defer t.Exit()
			sched.Yield(t)

			t.Enter(transferCheck, 100*(i+1))
			t.Exit()

			t.Enter(ledgerAppend, ledger)
			defer t.Exit()
			ledger.Entries++
			path, err := e.PersistSnapshot(ctx, transferCall.TypeName, "", id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			paths[i] = path
			log.WithFields(log.Fields{"task": t.String(), "path": path}).Debug("stored snapshot")
		}))
	}
	if err := sched.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to run demo tasks: %w", err)
	}
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return paths, nil
}
