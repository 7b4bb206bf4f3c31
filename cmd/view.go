package cmd

import (
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/chrisuehlinger/vibebridge/ui"
)

func newViewCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "view <page>",
		Short: "Run a page and show the host's rendering in a window.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.openSession(cmd.Context(), args[0], nil)
			if err != nil {
				return err
			}
			if err := s.run(cmd.Context()); err != nil {
				return err
			}

			title := s.page.Title
			if title == "" {
				title = args[0]
			}
			v := ui.NewViewer(app.New(), title,
				float32(opts.cfg.Host.ViewportWidth), float32(opts.cfg.Host.ViewportHeight),
				s.host.Snapshot)
			v.ShowAndRun()
			return s.close()
		},
	}
}
