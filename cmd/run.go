package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(opts *options) *cobra.Command {
	var (
		exportPath string
		target     string
	)

	runCmd := &cobra.Command{
		Use:   "run <page>",
		Short: "Load a page, run its scripts until idle and report errors.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if err := s.run(cmd.Context()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d commands applied\n", args[0], s.host.Applied())
			for _, scriptErr := range s.runtime.Errors() {
				fmt.Fprintf(out, "script error: %v\n", scriptErr)
			}

			if exportPath != "" {
				if err := s.export(exportPath, target); err != nil {
					return err
				}
				fmt.Fprintf(out, "exported %s\n", exportPath)
			}
			if err := s.close(); err != nil {
				return err
			}
			if n := len(s.runtime.Errors()); n > 0 {
				return fmt.Errorf("%d script error(s)", n)
			}
			return nil
		},
	}
	runCmd.Flags().StringVarP(&exportPath, "export", "o", "", "write a PNG of the target element")
	runCmd.Flags().StringVar(&target, "target", "", "id attribute of the element to export (default body)")
	return runCmd
}

// export paints the element with the given id attribute, or the body, to
// path at the configured pixel ratio.
func (s *session) export(path, target string) error {
	el := s.doc.Body()
	if target != "" {
		el = s.doc.GetElementByID(target)
	}
	if el == nil {
		return fmt.Errorf("export: no element %q", target)
	}
	data, err := s.host.ExportPNG(el.NativeID(), s.cfg.Export.DevicePixelRatio)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	s.logger.Info("Exported element",
		zap.String("path", path),
		zap.Int32("target", el.NativeID()),
		zap.Int("bytes", len(data)))
	return nil
}
