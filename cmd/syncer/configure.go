package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"terrarium_jobs/internal/domain"
)

type configureOptions struct {
	name      string
	enable    bool
	disable   bool
	apiKey    string
	interval  time.Duration
	statuses  []string
	jobTypes  []string
	locations []string
}

func NewConfigureCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &configureOptions{}

	cmd := &cobra.Command{
		Use:   "configure <community-id>",
		Short: "Create or update a community's RecruitCRM settings",
		Long: `Create or update a community's RecruitCRM settings.

Only flags that are given change; everything else keeps its stored value.
An empty --api-key makes the community use the process-wide key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(cmd.Flags()); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, rootOpts, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			community, err := a.communities.Get(ctx, args[0])
			if errors.Is(err, domain.ErrCommunityNotFound) {
				community = &domain.Community{ID: args[0], Name: args[0]}
			} else if err != nil {
				return err
			}

			applyConfigure(community, opts, cmd.Flags())

			if err := a.communities.Save(ctx, community); err != nil {
				return fmt.Errorf("save community: %w", err)
			}

			jobs, err := a.jobs.CountByCommunity(ctx, community.ID)
			if err != nil {
				return err
			}

			status := newCommunityStatus(community, jobs)
			p := printer{format: rootOpts.Format, w: cmd.OutOrStdout()}
			return p.print(status, func(w io.Writer) {
				fmt.Fprintf(w, "saved %s: recruitcrm %s, every %s\n",
					community.ID, enabledLabel(community.RecruitCRM.Enabled), status.SyncInterval)
			})
		},
	}

	opts.bindFlags(cmd.Flags())

	return cmd
}

func (o *configureOptions) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.name, "name", "", "community display name")
	fs.BoolVar(&o.enable, "enable", false, "enable the RecruitCRM integration")
	fs.BoolVar(&o.disable, "disable", false, "disable the RecruitCRM integration")
	fs.StringVar(&o.apiKey, "api-key", "", "community RecruitCRM API key")
	fs.DurationVar(&o.interval, "interval", domain.DefaultSyncInterval, "sync interval")
	fs.StringSliceVar(&o.statuses, "status", nil, "only keep jobs with these statuses")
	fs.StringSliceVar(&o.jobTypes, "job-type", nil, "only keep jobs of these types")
	fs.StringSliceVar(&o.locations, "location", nil, "only keep jobs in these cities")
}

func (o *configureOptions) validate(flags *pflag.FlagSet) error {
	if o.enable && o.disable {
		return errors.New("--enable and --disable are mutually exclusive")
	}
	if flags.Changed("interval") && o.interval < time.Minute {
		return fmt.Errorf("--interval %s: must be at least 1m", o.interval)
	}
	return nil
}

func applyConfigure(c *domain.Community, opts *configureOptions, flags *pflag.FlagSet) {
	settings := &c.RecruitCRM

	if flags.Changed("name") {
		c.Name = opts.name
	}
	if opts.enable {
		settings.Enabled = true
	}
	if opts.disable {
		settings.Enabled = false
	}
	if flags.Changed("api-key") {
		settings.APIKey = opts.apiKey
	}
	if flags.Changed("interval") {
		settings.SyncInterval = opts.interval.Truncate(time.Minute)
	}
	if flags.Changed("status") {
		settings.Filters.Statuses = opts.statuses
	}
	if flags.Changed("job-type") {
		settings.Filters.JobTypes = opts.jobTypes
	}
	if flags.Changed("location") {
		settings.Filters.Locations = opts.locations
	}
}
