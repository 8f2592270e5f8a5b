package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/younsl/voltag/internal/config"
	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/internal/version"
	"github.com/younsl/voltag/pkg/aws"
	"github.com/younsl/voltag/pkg/formatter"
	"github.com/younsl/voltag/pkg/tagger"
	"github.com/younsl/voltag/pkg/utils"
)

// How long the instance metadata region lookup may take off EC2
const imdsTimeout = 2 * time.Second

type options struct {
	configPath        string
	regions           []string
	allRegions        bool
	backfillSnapshots bool
	tagKey            string
	nameFilter        string
	dryRun            bool
	showVersion       bool
}

func main() {
	log.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		if errors.Is(err, aws.ErrProfileNotFound) {
			fmt.Fprintln(os.Stderr, aws.ErrProfileNotFound.Error())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "voltag <profile>",
		Short: "Tag untagged EBS volumes with the attached instance Name tag",
		Long: `voltag looks for EBS volumes without any tags, finds the first EC2
instance each one is attached to and copies that instance's Name tag onto
the volume and onto the volume's snapshots.

With --all-regions every enabled region is processed and snapshots of
already named volumes that are missing a Name tag are backfilled.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("accepts exactly 1 arg (the AWS profile), received %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Fprintln(stdout, version.Get().String())
				return nil
			}
			return run(cmd, opts, args[0], stdout, stderr)
		},
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.Flags()
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "Show version information")
	flags.StringVarP(&opts.configPath, "config", "c", "",
		fmt.Sprintf("Settings file (default: ~/%s if present)", config.DefaultFileName))
	flags.StringSliceVarP(&opts.regions, "regions", "r", nil,
		"AWS regions to process (comma separated, default: profile region)")
	flags.BoolVarP(&opts.allRegions, "all-regions", "a", false,
		"Process every enabled region and backfill snapshot tags")
	flags.BoolVar(&opts.backfillSnapshots, "backfill-snapshots", false,
		"Tag snapshots missing a Name tag from their already named source volume")
	flags.StringVarP(&opts.tagKey, "tag-key", "k", utils.NameTagKey, "Tag key to propagate")
	flags.StringVarP(&opts.nameFilter, "name-filter", "f", "",
		"Only propagate tag values matching this glob (e.g. 'web-*')")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Report what would be tagged without tagging")

	return rootCmd
}

// mergeSettings applies file settings for every flag the user did not set
func mergeSettings(cmd *cobra.Command, opts *options, settings config.Settings) {
	flags := cmd.Flags()
	if !flags.Changed("regions") && len(settings.Regions) > 0 {
		opts.regions = settings.Regions
	}
	if !flags.Changed("all-regions") {
		opts.allRegions = settings.AllRegions
	}
	if !flags.Changed("backfill-snapshots") {
		opts.backfillSnapshots = settings.BackfillSnapshots
	}
	if !flags.Changed("tag-key") && settings.TagKey != "" {
		opts.tagKey = settings.TagKey
	}
	if !flags.Changed("name-filter") {
		opts.nameFilter = settings.NameFilter
	}
	if !flags.Changed("dry-run") {
		opts.dryRun = settings.DryRun
	}
}

func run(cmd *cobra.Command, opts *options, profile string, stdout, stderr io.Writer) error {
	ctx := cmd.Context()

	settings, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	mergeSettings(cmd, opts, settings)

	tagOpts := tagger.Options{
		TagKey:            strings.TrimSpace(opts.tagKey),
		NameFilter:        opts.nameFilter,
		BackfillSnapshots: opts.backfillSnapshots || opts.allRegions,
		DryRun:            opts.dryRun,
		IsNotFound:        aws.IsNotFound,
	}
	if err := tagOpts.Validate(); err != nil {
		return err
	}

	cfg, err := aws.LoadConfig(ctx, profile, "")
	if err != nil {
		return err
	}

	homeRegion := cfg.Region
	if homeRegion == "" {
		imdsCtx, cancel := context.WithTimeout(ctx, imdsTimeout)
		homeRegion = aws.DefaultRegion(imdsCtx, cfg, aws.NewIMDSClient(cfg))
		cancel()
	}

	regions, err := resolveRegions(ctx, opts, aws.NewEC2Client(cfg, homeRegion), homeRegion, stdout, stderr)
	if err != nil {
		return err
	}

	if opts.dryRun {
		fmt.Fprintln(stdout, "Dry run: no tags will be created")
	}

	scanStartTime := time.Now()

	var bar *progressbar.ProgressBar
	if len(regions) > 1 {
		bar = progressbar.NewOptions(len(regions),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("Tagging regions"),
			progressbar.OptionClearOnFinish(),
		)
	}

	reports := make([]*models.RegionReport, 0, len(regions))
	for _, region := range regions {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Tagging %s", region))
		}

		formatter.PrintRegionHeader(stdout, region)
		report, err := processRegion(ctx, aws.NewEC2Client(cfg, region), tagOpts, stdout)
		if err != nil {
			return fmt.Errorf("region %s: %w", region, err)
		}
		reports = append(reports, report)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	formatter.PrintSummary(stdout, reports, scanStartTime, time.Since(scanStartTime))
	return nil
}

// resolveRegions returns the regions to process, in order
func resolveRegions(ctx context.Context, opts *options, client *aws.EC2Client, homeRegion string, stdout, stderr io.Writer) ([]string, error) {
	if opts.allRegions {
		s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(stderr))
		s.Suffix = " Discovering enabled regions ..."
		s.Start()
		regions, err := client.ListRegions(ctx)
		s.Stop()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(stdout, "%d enabled regions found\n", len(regions))
		return regions, nil
	}

	if len(opts.regions) == 0 {
		return []string{homeRegion}, nil
	}

	var validRegions []string
	for _, region := range opts.regions {
		region = strings.TrimSpace(region)
		if utils.IsValidRegion(region) {
			validRegions = append(validRegions, region)
		} else {
			fmt.Fprintf(stderr, "Warning: Skipping invalid region '%s'\n", region)
		}
	}
	if len(validRegions) == 0 {
		return nil, errors.New("no valid regions specified")
	}

	return validRegions, nil
}

// processRegion runs the propagator for one region and prints its report
func processRegion(ctx context.Context, client tagger.Cloud, tagOpts tagger.Options, stdout io.Writer) (*models.RegionReport, error) {
	p, err := tagger.New(client, tagOpts, stdout)
	if err != nil {
		return nil, err
	}

	report, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	log.Infof("region %s done: %d tagged in %s", report.Region, report.TotalTagged(), report.Duration)
	formatter.PrintRegionReport(stdout, report)
	return report, nil
}
