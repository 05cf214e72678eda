package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"terrarium_jobs/internal/domain"
)

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var noPublish bool

	cmd := &cobra.Command{
		Use:   "sync <community-id>",
		Short: "Sync one community's jobs now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, args[0], !noPublish)
		},
	}

	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "do not emit job events even if rabbitmq is enabled")

	return cmd
}

func runSync(cmd *cobra.Command, rootOpts *RootOptions, communityID string, publish bool) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, rootOpts, appOptions{publish: publish})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Sync.RunTimeout)
	defer cancel()

	stats, err := a.service.SyncJobs(ctx, communityID)
	if err != nil {
		var failed *domain.SyncFailedError
		if errors.As(err, &failed) {
			fmt.Fprintln(cmd.ErrOrStderr(), failed.UserMessage())
		}
		return err
	}

	p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
	return p.print(stats, func(w io.Writer) { writeStats(w, stats) })
}

func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <community-id>",
		Short: "Verify the community's RecruitCRM credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.service.TestConnection(ctx, args[0]); err != nil {
				return fmt.Errorf("connection check failed: %w", err)
			}

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(map[string]any{"communityId": args[0], "ok": true}, func(w io.Writer) {
				fmt.Fprintf(w, "recruitcrm connection ok for %s\n", args[0])
			})
		},
	}
}

func NewJobTypesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "job-types <community-id>",
		Short: "List job types known to the community's RecruitCRM account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			types, err := a.service.ListJobTypes(ctx, args[0])
			if err != nil {
				return err
			}

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(types, func(w io.Writer) {
				for _, t := range types {
					fmt.Fprintf(w, "%d\t%s\n", t.ID, t.Name)
				}
			})
		},
	}
}

func NewLocationsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locations <community-id>",
		Short: "List locations known to the community's RecruitCRM account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			locations, err := a.service.ListLocations(ctx, args[0])
			if err != nil {
				return err
			}

			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(locations, func(w io.Writer) {
				for _, l := range locations {
					fmt.Fprintln(w, formatLocation(l))
				}
			})
		},
	}
}

func formatLocation(l domain.Location) string {
	if l.State != nil && *l.State != "" {
		return fmt.Sprintf("%s, %s, %s", l.City, *l.State, l.Country)
	}
	return fmt.Sprintf("%s, %s", l.City, l.Country)
}
