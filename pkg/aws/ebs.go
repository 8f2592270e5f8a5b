package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/pkg/utils"
)

// OwnerSelf restricts snapshot listings to the caller's account
const OwnerSelf = "self"

// ListVolumes returns every EBS volume in the region
func (c *EC2Client) ListVolumes(ctx context.Context) ([]models.VolumeInfo, error) {
	paginator := ec2.NewDescribeVolumesPaginator(c.client, &ec2.DescribeVolumesInput{})

	volumes := []models.VolumeInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying EBS volumes: %w", err)
		}
		for _, volume := range page.Volumes {
			volumes = append(volumes, c.toVolumeInfo(volume))
		}
	}

	log.Debugf("%d volumes listed in %s", len(volumes), c.region)
	return volumes, nil
}

// GetVolume returns a single volume. Callers can test the error with IsNotFound.
func (c *EC2Client) GetVolume(ctx context.Context, volumeID string) (models.VolumeInfo, error) {
	input := &ec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	}

	result, err := c.client.DescribeVolumes(ctx, input)
	if err != nil {
		return models.VolumeInfo{}, fmt.Errorf("error querying EBS volume %s: %w", volumeID, err)
	}
	if len(result.Volumes) == 0 {
		return models.VolumeInfo{}, fmt.Errorf("EBS volume %s not returned by DescribeVolumes", volumeID)
	}

	return c.toVolumeInfo(result.Volumes[0]), nil
}

// ListSnapshots returns the snapshots owned by the account. A non-empty
// volumeID limits the result to snapshots of that volume.
func (c *EC2Client) ListSnapshots(ctx context.Context, volumeID string) ([]models.SnapshotInfo, error) {
	input := &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{OwnerSelf},
	}
	if volumeID != "" {
		input.Filters = []types.Filter{
			{
				Name:   aws.String("volume-id"),
				Values: []string{volumeID},
			},
		}
	}

	paginator := ec2.NewDescribeSnapshotsPaginator(c.client, input)

	snapshots := []models.SnapshotInfo{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("error querying EBS snapshots: %w", err)
		}
		for _, snapshot := range page.Snapshots {
			info := models.SnapshotInfo{
				SnapshotID: utils.SafeDeref(snapshot.SnapshotId),
				VolumeID:   utils.SafeDeref(snapshot.VolumeId),
				Tags:       utils.FromEC2Tags(snapshot.Tags),
				Size:       utils.SafeDerefInt32(snapshot.VolumeSize),
				Region:     c.region,
			}
			if snapshot.StartTime != nil {
				info.StartTime = *snapshot.StartTime
			}
			snapshots = append(snapshots, info)
		}
	}

	return snapshots, nil
}

func (c *EC2Client) toVolumeInfo(volume types.Volume) models.VolumeInfo {
	info := models.VolumeInfo{
		VolumeID:         utils.SafeDeref(volume.VolumeId),
		Tags:             utils.FromEC2Tags(volume.Tags),
		Size:             utils.SafeDerefInt32(volume.Size),
		VolumeType:       string(volume.VolumeType),
		State:            string(volume.State),
		Region:           c.region,
		AvailabilityZone: utils.SafeDeref(volume.AvailabilityZone),
	}
	if volume.CreateTime != nil {
		info.CreationTime = *volume.CreateTime
	}

	for _, attachment := range volume.Attachments {
		if attachment.InstanceId == nil {
			continue
		}
		info.Attachments = append(info.Attachments, *attachment.InstanceId)
	}

	return info
}
