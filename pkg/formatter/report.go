package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/pkg/utils"
)

// PrintRegionHeader prints the section header for a region
func PrintRegionHeader(w io.Writer, region string) {
	fmt.Fprintf(w, "\n## %s (%s)\n", region, utils.GetRegionDescriptiveName(region))
}

// PrintRegionReport prints the tag actions of a region followed by the id lists
func PrintRegionReport(w io.Writer, report *models.RegionReport) {
	actions := append(append([]models.TagAction{}, report.TaggedVolumes...), report.TaggedSnapshots...)

	if len(actions) == 0 {
		fmt.Fprintln(w, "No resources tagged.")
	} else {
		// kubectl style tabwriter
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tRESOURCE ID\tSOURCE\tTAG\tSIZE\tCREATED\tMODE")

		for _, action := range actions {
			created := "-"
			if action.StartTime != nil {
				created = humanize.Time(*action.StartTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s=%s\t%s\t%s\t%s\n",
				action.ResourceKind,
				action.ResourceID,
				action.SourceID,
				action.Key,
				FitString(action.Value, MAX_VALUE_WIDTH),
				formatSize(action.Size),
				created,
				actionMode(action),
			)
		}

		fmt.Fprintf(tw, "Total:\t%d volumes, %d snapshots\t\t\t\t\t\n",
			len(report.TaggedVolumes), len(report.TaggedSnapshots))
		tw.Flush()
	}

	printIDList(w, "The following list of instance id's are untagged:", report.UntaggedInstances)
	printIDList(w, "The following list of volume id's are unattached:", report.UnattachedVolumes)
	printIDList(w, "The following list of instance id's have tags but no name tag:", report.UnnamedInstances)
	printIDList(w, "The following list of tag values were skipped by the name filter:", report.FilteredValues)
	printIDList(w, "The following list of snapshot source volume id's were not found:", report.MissingVolumes)
}

// PrintSummary prints one row per region and the overall totals
func PrintSummary(w io.Writer, reports []*models.RegionReport, scanStartTime time.Time, scanDuration time.Duration) {
	if len(reports) == 0 {
		return
	}

	fmt.Fprintln(w, "\n## Volume Tagging Summary")

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tVOLUMES\tUNTAGGED\tTAGGED VOLUMES\tTAGGED SNAPSHOTS\tUNATTACHED\tUNTAGGED INSTANCES\tMISSING VOLUMES")

	var total models.RegionReport
	for _, report := range reports {
		printSummaryRow(tw, report.Region, report)

		total.ScannedVolumes += report.ScannedVolumes
		total.UntaggedVolumes += report.UntaggedVolumes
		total.TaggedVolumes = append(total.TaggedVolumes, report.TaggedVolumes...)
		total.TaggedSnapshots = append(total.TaggedSnapshots, report.TaggedSnapshots...)
		total.UnattachedVolumes = append(total.UnattachedVolumes, report.UnattachedVolumes...)
		total.UntaggedInstances = append(total.UntaggedInstances, report.UntaggedInstances...)
		total.MissingVolumes = append(total.MissingVolumes, report.MissingVolumes...)
	}
	if len(reports) > 1 {
		printSummaryRow(tw, "Total:", &total)
	}
	tw.Flush()

	printTimestamp(w, scanStartTime, scanDuration)
}

func printSummaryRow(tw *tabwriter.Writer, label string, report *models.RegionReport) {
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		label,
		humanize.Comma(int64(report.ScannedVolumes)),
		humanize.Comma(int64(report.UntaggedVolumes)),
		humanize.Comma(int64(len(report.TaggedVolumes))),
		humanize.Comma(int64(len(report.TaggedSnapshots))),
		humanize.Comma(int64(len(report.UnattachedVolumes))),
		humanize.Comma(int64(len(report.UntaggedInstances))),
		humanize.Comma(int64(len(report.MissingVolumes))),
	)
}

func printIDList(w io.Writer, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, id := range ids {
		fmt.Fprintf(w, "  - %s\n", id)
	}
}

// formatSize renders a GiB count as a human readable size
func formatSize(gib int) string {
	if gib <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(gib) << 30)
}

func actionMode(action models.TagAction) string {
	if action.DryRun {
		return "dry-run"
	}
	return "applied"
}
