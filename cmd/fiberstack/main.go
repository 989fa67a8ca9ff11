// Command fiberstack serves, lists and fetches fiber stack snapshots, and can
// produce a few from a demo workload.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	dir     string
	url     string
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("fiberstack failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	root := &cobra.Command{
		Use:           "fiberstack",
		Short:         "Work with fiber stack snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
			if flags.verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&flags.dir, "dir", "",
		"snapshot base directory (default $FIBERSTACK_SNAPSHOT_DIR or the working directory)")
	root.PersistentFlags().StringVar(&flags.url, "url", "",
		"snapshot store URL (default $FIBERSTACK_URL or http://127.0.0.1:7390)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		newServeCmd(&flags),
		newLsCmd(&flags),
		newGetCmd(&flags),
		newDemoCmd(&flags),
	)
	return root
}

// errorLogger reports library errors through logrus.
func errorLogger(component string) func(error) {
	return func(err error) {
		log.WithField("component", component).WithError(err).Warn("error")
	}
}
