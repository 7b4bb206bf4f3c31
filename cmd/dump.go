package cmd

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chrisuehlinger/vibebridge/uicommand"
)

// batchWriter writes every batch it sees, then forwards it.
type batchWriter struct {
	mu     sync.Mutex
	w      io.Writer
	format string
	next   uicommand.Sink
}

func (d *batchWriter) ApplyCommands(contextID int32, batch []uicommand.Command) error {
	if err := d.write(contextID, batch); err != nil {
		return err
	}
	return d.next.ApplyCommands(contextID, batch)
}

func (d *batchWriter) write(contextID int32, batch []uicommand.Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.format == "text" {
		for _, c := range batch {
			if _, err := fmt.Fprintf(d.w, "[%d] %s\n", contextID, c); err != nil {
				return fmt.Errorf("dump: %w", err)
			}
		}
		return nil
	}

	data, err := uicommand.MarshalBatch(&uicommand.Batch{ContextID: contextID, Commands: batch})
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	if _, err := d.w.Write(data); err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	return nil
}

func newDumpCmd(opts *options) *cobra.Command {
	var (
		outPath string
		format  string
	)

	dumpCmd := &cobra.Command{
		Use:   "dump <page>",
		Short: "Run a page and write the UI command stream it produces.",
		Long: `Runs a page like "run" and writes every flushed batch. The cbor format
is a sequence of CBOR batches, one per flush; text prints one command per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "cbor" && format != "text" {
				return fmt.Errorf("unknown format %q (want cbor or text)", format)
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("dump: %w", err)
				}
				defer f.Close()
				w = f
			}

			tap := func(next uicommand.Sink) uicommand.Sink {
				return &batchWriter{w: w, format: format, next: next}
			}
			s, err := opts.openSession(cmd.Context(), args[0], tap)
			if err != nil {
				return err
			}
			if err := s.run(cmd.Context()); err != nil {
				return err
			}
			return s.close()
		},
	}
	dumpCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	dumpCmd.Flags().StringVar(&format, "format", "cbor", "cbor or text")
	return dumpCmd
}
