package main

import (
	"io"
	"time"

	"github.com/spf13/cobra"
)

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var externalID string

	cmd := &cobra.Command{
		Use:   "status <community-id>",
		Short: "Show a community's integration settings and last sync",
		Long: `Show a community's integration settings and last sync.

With --job, show one stored job instead, e.g. --job recruitcrm_12345.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			community, err := a.communities.Get(ctx, args[0])
			if err != nil {
				return err
			}
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}

			if externalID != "" {
				job, err := a.jobs.GetByExternalID(ctx, community.ID, externalID)
				if err != nil {
					return err
				}
				return p.print(job, func(w io.Writer) { writeJob(w, job, time.Now()) })
			}

			jobs, err := a.jobs.CountByCommunity(ctx, community.ID)
			if err != nil {
				return err
			}

			status := newCommunityStatus(community, jobs)
			return p.print(status, func(w io.Writer) { writeStatus(w, status, time.Now()) })
		},
	}

	cmd.Flags().StringVar(&externalID, "job", "", "external id of one job to show")

	return cmd
}
