package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"

	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/internal/models"
	"github.com/younsl/voltag/pkg/utils"
)

// EC2API is the subset of the EC2 client used by voltag
type EC2API interface {
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
}

// EC2Client struct for EC2 client
type EC2Client struct {
	client EC2API
	region string
}

// NewEC2Client creates a new EC2Client for the given region
func NewEC2Client(cfg aws.Config, region string) *EC2Client {
	client := ec2.NewFromConfig(cfg, func(o *ec2.Options) {
		o.Region = region
	})
	return NewEC2ClientWithAPI(client, region)
}

// NewEC2ClientWithAPI wraps an existing EC2API implementation
func NewEC2ClientWithAPI(client EC2API, region string) *EC2Client {
	return &EC2Client{
		client: client,
		region: region,
	}
}

// Region returns the region the client talks to
func (c *EC2Client) Region() string {
	return c.region
}

// GetInstance returns the instance with the given ID
func (c *EC2Client) GetInstance(ctx context.Context, instanceID string) (models.InstanceInfo, error) {
	input := &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	}

	result, err := c.client.DescribeInstances(ctx, input)
	if err != nil {
		return models.InstanceInfo{}, fmt.Errorf("error querying EC2 instance %s: %w", instanceID, err)
	}

	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			if utils.SafeDeref(instance.InstanceId) != instanceID {
				continue
			}
			return models.InstanceInfo{
				InstanceID: instanceID,
				Tags:       utils.FromEC2Tags(instance.Tags),
				Region:     c.region,
			}, nil
		}
	}

	return models.InstanceInfo{}, fmt.Errorf("EC2 instance %s not returned by DescribeInstances", instanceID)
}

// CreateTags adds tags to the given resources. Existing tags with other keys are kept.
func (c *EC2Client) CreateTags(ctx context.Context, resourceIDs []string, tags []models.Tag) error {
	input := &ec2.CreateTagsInput{
		Resources: resourceIDs,
		Tags:      utils.ConvertToEC2Tags(tags),
	}

	if _, err := c.client.CreateTags(ctx, input); err != nil {
		return fmt.Errorf("error tagging %v: %w", resourceIDs, err)
	}

	log.Debugf("tagged %v in %s", resourceIDs, c.region)
	return nil
}

// ListRegions returns the enabled regions of the account, sorted by name
func (c *EC2Client) ListRegions(ctx context.Context) ([]string, error) {
	input := &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false),
	}

	result, err := c.client.DescribeRegions(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error querying AWS regions: %w", err)
	}

	var regions []string
	for _, region := range result.Regions {
		name := utils.SafeDeref(region.RegionName)
		if name == "" {
			continue
		}
		switch utils.SafeDeref(region.OptInStatus) {
		case "opt-in-not-required", "opted-in", "":
			regions = append(regions, name)
		default:
			log.Debugf("skipping region %s (%s)", name, utils.SafeDeref(region.OptInStatus))
		}
	}
	sort.Strings(regions)

	return regions, nil
}
