package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DataExMachina-dev/fiberstack-go/fiberstackclient"
)

func newLsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [identifier]",
		Short: "List stored snapshots",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var identifier string
			if len(args) == 1 {
				identifier = args[0]
			}
			c, err := fiberstackclient.NewClient(flags.url)
			if err != nil {
				return err
			}
			defer c.Close()
			entries, err := c.ListSnapshots(cmd.Context(), identifier)
			if err != nil {
				return err
			}
			return printEntries(cmd.OutOrStdout(), entries)
		},
	}
}

func printEntries(out io.Writer, entries []fiberstackclient.Entry) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSIZE\tWRITTEN\tDIGEST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			e.Path, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime), e.Digest)
	}
	return tw.Flush()
}

func newGetCmd(flags *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print a stored snapshot, or save the stored file with -o",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := fiberstackclient.NewClient(flags.url)
			if err != nil {
				return err
			}
			defer c.Close()
			ctx := cmd.Context()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				n, err := c.Download(ctx, args[0], f)
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{"file": output, "size": humanize.Bytes(uint64(n))}).Info("downloaded snapshot")
				return nil
			}
			doc, err := c.GetSnapshot(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the stored file to this path")
	return cmd
}
