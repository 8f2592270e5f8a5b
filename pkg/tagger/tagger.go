// Package tagger copies the Name tag of EC2 instances onto their untagged EBS
// volumes and the snapshots of those volumes.
//
// Tags are only ever added. A volume is considered only when it carries no
// tags at all, and a snapshot only when it lacks the propagated key.
package tagger

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gobwas/glob"

	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/pkg/utils"
)

// Cloud is the per-region EC2 surface the propagator needs.
// *aws.EC2Client satisfies it.
type Cloud interface {
	Region() string
	ListVolumes(ctx context.Context) ([]models.VolumeInfo, error)
	GetVolume(ctx context.Context, volumeID string) (models.VolumeInfo, error)
	GetInstance(ctx context.Context, instanceID string) (models.InstanceInfo, error)
	ListSnapshots(ctx context.Context, volumeID string) ([]models.SnapshotInfo, error)
	CreateTags(ctx context.Context, resourceIDs []string, tags []models.Tag) error
}

// NotFoundFunc reports whether an error means the resource does not exist
type NotFoundFunc func(error) bool

// Options controls a propagation run
type Options struct {
	TagKey            string
	NameFilter        string // glob, empty matches everything
	BackfillSnapshots bool
	DryRun            bool
	IsNotFound        NotFoundFunc
}

// Propagator copies tags within a single region
type Propagator struct {
	cloud       Cloud
	opts        Options
	filter      glob.Glob
	out         io.Writer
	instances   map[string]models.InstanceInfo
	tagged      map[string]bool
	volumesByID map[string]models.VolumeInfo
}

// New creates a Propagator. Progress lines are written to out.
func New(cloud Cloud, opts Options, out io.Writer) (*Propagator, error) {
	if opts.TagKey == "" {
		opts.TagKey = utils.NameTagKey
	}
	if opts.IsNotFound == nil {
		opts.IsNotFound = func(error) bool { return false }
	}
	if out == nil {
		out = io.Discard
	}

	p := &Propagator{
		cloud: cloud,
		opts:  opts,
		out:   out,
	}

	filter, err := opts.compileFilter()
	if err != nil {
		return nil, err
	}
	p.filter = filter

	return p, nil
}

// Validate checks the options without touching the cloud
func (o Options) Validate() error {
	_, err := o.compileFilter()
	return err
}

func (o Options) compileFilter() (glob.Glob, error) {
	if o.NameFilter == "" {
		return nil, nil
	}
	g, err := glob.Compile(o.NameFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid name filter %q: %w", o.NameFilter, err)
	}
	return g, nil
}

// Run tags the region and returns what was done. Any API error other than a
// missing snapshot source volume aborts the run.
func (p *Propagator) Run(ctx context.Context) (*models.RegionReport, error) {
	start := time.Now()
	p.instances = make(map[string]models.InstanceInfo)
	p.tagged = make(map[string]bool)
	p.volumesByID = make(map[string]models.VolumeInfo)

	report := &models.RegionReport{Region: p.cloud.Region()}

	fmt.Fprintln(p.out, "Fetching untagged Volumes")
	volumes, err := p.cloud.ListVolumes(ctx)
	if err != nil {
		return report, err
	}
	report.ScannedVolumes = len(volumes)

	var untagged []models.VolumeInfo
	for _, volume := range volumes {
		p.volumesByID[volume.VolumeID] = volume
		if len(volume.Tags) == 0 {
			untagged = append(untagged, volume)
		}
	}
	report.UntaggedVolumes = len(untagged)
	fmt.Fprintf(p.out, "%d untagged volumes found\n", len(untagged))

	for _, volume := range untagged {
		if err := p.tagVolume(ctx, volume, report); err != nil {
			return report, err
		}
	}

	if p.opts.BackfillSnapshots {
		if err := p.backfillSnapshots(ctx, report); err != nil {
			return report, err
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (p *Propagator) tagVolume(ctx context.Context, volume models.VolumeInfo, report *models.RegionReport) error {
	if !volume.Attached() {
		report.UnattachedVolumes = append(report.UnattachedVolumes, volume.VolumeID)
		return nil
	}

	instance, err := p.instance(ctx, volume.FirstInstanceID())
	if err != nil {
		return err
	}

	if len(instance.Tags) == 0 {
		report.UntaggedInstances = utils.AppendUnique(report.UntaggedInstances, instance.InstanceID)
		return nil
	}

	tag, ok := utils.FindTag(instance.Tags, p.opts.TagKey)
	if !ok {
		report.UnnamedInstances = utils.AppendUnique(report.UnnamedInstances, instance.InstanceID)
		return nil
	}

	if p.filter != nil && !p.filter.Match(tag.Value) {
		log.Debugf("%s: value %q rejected by name filter", volume.VolumeID, tag.Value)
		report.FilteredValues = utils.AppendUnique(report.FilteredValues, tag.Value)
		return nil
	}

	fmt.Fprintf(p.out, "Tagging: %s from %s (%s=%s)\n", volume.VolumeID, instance.InstanceID, tag.Key, tag.Value)
	if err := p.apply(ctx, volume.VolumeID, tag); err != nil {
		return err
	}
	report.TaggedVolumes = append(report.TaggedVolumes, models.TagAction{
		ResourceID:   volume.VolumeID,
		ResourceKind: models.ResourceVolume,
		SourceID:     instance.InstanceID,
		Key:          tag.Key,
		Value:        tag.Value,
		Size:         volume.Size,
		DryRun:       p.opts.DryRun,
	})

	volume.Tags = append(volume.Tags, tag)
	p.volumesByID[volume.VolumeID] = volume

	snapshots, err := p.cloud.ListSnapshots(ctx, volume.VolumeID)
	if err != nil {
		return err
	}
	for _, snapshot := range snapshots {
		if err := p.tagSnapshot(ctx, snapshot, volume.VolumeID, tag, report); err != nil {
			return err
		}
	}

	return nil
}

// instance returns the instance, fetching it at most once per run
func (p *Propagator) instance(ctx context.Context, instanceID string) (models.InstanceInfo, error) {
	if instance, ok := p.instances[instanceID]; ok {
		return instance, nil
	}
	instance, err := p.cloud.GetInstance(ctx, instanceID)
	if err != nil {
		return models.InstanceInfo{}, err
	}
	p.instances[instanceID] = instance
	return instance, nil
}

func (p *Propagator) tagSnapshot(ctx context.Context, snapshot models.SnapshotInfo, sourceID string, tag models.Tag, report *models.RegionReport) error {
	if p.tagged[snapshot.SnapshotID] || utils.HasTag(snapshot.Tags, p.opts.TagKey) {
		return nil
	}

	fmt.Fprintf(p.out, "Tagging: %s from %s (%s=%s)\n", snapshot.SnapshotID, sourceID, tag.Key, tag.Value)
	if err := p.apply(ctx, snapshot.SnapshotID, tag); err != nil {
		return err
	}

	action := models.TagAction{
		ResourceID:   snapshot.SnapshotID,
		ResourceKind: models.ResourceSnapshot,
		SourceID:     sourceID,
		Key:          tag.Key,
		Value:        tag.Value,
		Size:         snapshot.Size,
		DryRun:       p.opts.DryRun,
	}
	if !snapshot.StartTime.IsZero() {
		started := snapshot.StartTime
		action.StartTime = &started
	}
	report.TaggedSnapshots = append(report.TaggedSnapshots, action)

	return nil
}

func (p *Propagator) apply(ctx context.Context, resourceID string, tag models.Tag) error {
	p.tagged[resourceID] = true
	if p.opts.DryRun {
		log.Debugf("dry run: skipping CreateTags on %s", resourceID)
		return nil
	}
	return p.cloud.CreateTags(ctx, []string{resourceID}, []models.Tag{tag})
}
