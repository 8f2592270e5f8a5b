package tagger

import (
	"context"

	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/pkg/utils"
)

// backfillSnapshots tags owned snapshots that lack the key from their source
// volume. Snapshots whose volume no longer exists are recorded, not fatal.
func (p *Propagator) backfillSnapshots(ctx context.Context, report *models.RegionReport) error {
	snapshots, err := p.cloud.ListSnapshots(ctx, "")
	if err != nil {
		return err
	}

	for _, snapshot := range snapshots {
		if p.tagged[snapshot.SnapshotID] || utils.HasTag(snapshot.Tags, p.opts.TagKey) {
			continue
		}
		if snapshot.VolumeID == "" {
			continue
		}

		volume, found, err := p.sourceVolume(ctx, snapshot.VolumeID)
		if err != nil {
			return err
		}
		if !found {
			log.Debugf("%s: source volume %s not found", snapshot.SnapshotID, snapshot.VolumeID)
			report.MissingVolumes = utils.AppendUnique(report.MissingVolumes, snapshot.VolumeID)
			continue
		}

		tag, ok := utils.FindTag(volume.Tags, p.opts.TagKey)
		if !ok {
			continue
		}
		if p.filter != nil && !p.filter.Match(tag.Value) {
			report.FilteredValues = utils.AppendUnique(report.FilteredValues, tag.Value)
			continue
		}

		if err := p.tagSnapshot(ctx, snapshot, volume.VolumeID, tag, report); err != nil {
			return err
		}
	}

	return nil
}

// sourceVolume looks the volume up in the region listing first, then asks the
// API. A NotFound answer is cached as an empty entry.
func (p *Propagator) sourceVolume(ctx context.Context, volumeID string) (models.VolumeInfo, bool, error) {
	if volume, ok := p.volumesByID[volumeID]; ok {
		return volume, volume.VolumeID != "", nil
	}

	volume, err := p.cloud.GetVolume(ctx, volumeID)
	if err != nil {
		if p.opts.IsNotFound(err) {
			p.volumesByID[volumeID] = models.VolumeInfo{}
			return models.VolumeInfo{}, false, nil
		}
		return models.VolumeInfo{}, false, err
	}

	p.volumesByID[volumeID] = volume
	return volume, true, nil
}
