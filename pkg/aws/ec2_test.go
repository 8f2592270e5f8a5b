package aws

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/voltag/internal/models"
)

// fakeEC2 serves canned pages keyed by NextToken and records CreateTags calls.
type fakeEC2 struct {
	volumePages   map[string]*ec2.DescribeVolumesOutput
	volumesByID   map[string]types.Volume
	snapshotPages map[string]*ec2.DescribeSnapshotsOutput
	instances     map[string]types.Instance
	regions       []types.Region

	snapshotInputs []*ec2.DescribeSnapshotsInput
	tagInputs      []*ec2.CreateTagsInput
	err            error
}

func (f *fakeEC2) DescribeVolumes(_ context.Context, in *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(in.VolumeIds) > 0 {
		out := &ec2.DescribeVolumesOutput{}
		for _, id := range in.VolumeIds {
			v, ok := f.volumesByID[id]
			if !ok {
				return nil, &smithy.GenericAPIError{Code: "InvalidVolume.NotFound", Message: fmt.Sprintf("The volume '%s' does not exist.", id)}
			}
			out.Volumes = append(out.Volumes, v)
		}
		return out, nil
	}
	return f.volumePages[aws.ToString(in.NextToken)], nil
}

func (f *fakeEC2) DescribeInstances(_ context.Context, in *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := &ec2.DescribeInstancesOutput{}
	for _, id := range in.InstanceIds {
		inst, ok := f.instances[id]
		if !ok {
			return nil, &smithy.GenericAPIError{Code: "InvalidInstanceID.NotFound"}
		}
		out.Reservations = append(out.Reservations, types.Reservation{Instances: []types.Instance{inst}})
	}
	return out, nil
}

func (f *fakeEC2) DescribeSnapshots(_ context.Context, in *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.snapshotInputs = append(f.snapshotInputs, in)
	return f.snapshotPages[aws.ToString(in.NextToken)], nil
}

func (f *fakeEC2) DescribeRegions(_ context.Context, _ *ec2.DescribeRegionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ec2.DescribeRegionsOutput{Regions: f.regions}, nil
}

func (f *fakeEC2) CreateTags(_ context.Context, in *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tagInputs = append(f.tagInputs, in)
	return &ec2.CreateTagsOutput{}, nil
}

func tag(key, value string) types.Tag {
	return types.Tag{Key: aws.String(key), Value: aws.String(value)}
}

func TestListVolumes_Paginates(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fake := &fakeEC2{
		volumePages: map[string]*ec2.DescribeVolumesOutput{
			"": {
				Volumes: []types.Volume{
					{
						VolumeId:   aws.String("vol-1"),
						Size:       aws.Int32(100),
						VolumeType: types.VolumeTypeGp3,
						State:      types.VolumeStateInUse,
						CreateTime: &created,
						Attachments: []types.VolumeAttachment{
							{InstanceId: aws.String("i-1")},
							{InstanceId: aws.String("i-2")},
						},
					},
				},
				NextToken: aws.String("page-2"),
			},
			"page-2": {
				Volumes: []types.Volume{
					{
						VolumeId: aws.String("vol-2"),
						Tags:     []types.Tag{tag("Name", "db")},
						State:    types.VolumeStateAvailable,
					},
				},
			},
		},
	}

	client := NewEC2ClientWithAPI(fake, "eu-west-1")
	volumes, err := client.ListVolumes(context.Background())
	require.NoError(t, err)
	require.Len(t, volumes, 2)

	assert.Equal(t, "vol-1", volumes[0].VolumeID)
	assert.Equal(t, []string{"i-1", "i-2"}, volumes[0].Attachments)
	assert.Equal(t, "i-1", volumes[0].FirstInstanceID())
	assert.Equal(t, 100, volumes[0].Size)
	assert.Equal(t, "gp3", volumes[0].VolumeType)
	assert.Equal(t, created, volumes[0].CreationTime)
	assert.Equal(t, "eu-west-1", volumes[0].Region)
	assert.Empty(t, volumes[0].Tags)

	assert.Equal(t, "vol-2", volumes[1].VolumeID)
	assert.False(t, volumes[1].Attached())
	assert.Equal(t, []models.Tag{{Key: "Name", Value: "db"}}, volumes[1].Tags)
}

func TestListVolumes_Error(t *testing.T) {
	fake := &fakeEC2{err: errors.New("boom")}
	_, err := NewEC2ClientWithAPI(fake, "us-east-1").ListVolumes(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestGetVolume_NotFound(t *testing.T) {
	fake := &fakeEC2{volumesByID: map[string]types.Volume{}}
	_, err := NewEC2ClientWithAPI(fake, "us-east-1").GetVolume(context.Background(), "vol-gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestGetInstance(t *testing.T) {
	fake := &fakeEC2{
		instances: map[string]types.Instance{
			"i-1": {InstanceId: aws.String("i-1"), Tags: []types.Tag{tag("Env", "prod"), tag("Name", "web-1")}},
		},
	}
	client := NewEC2ClientWithAPI(fake, "us-east-1")

	inst, err := client.GetInstance(context.Background(), "i-1")
	require.NoError(t, err)
	assert.Equal(t, "i-1", inst.InstanceID)
	assert.Equal(t, []models.Tag{{Key: "Env", Value: "prod"}, {Key: "Name", Value: "web-1"}}, inst.Tags)

	_, err = client.GetInstance(context.Background(), "i-missing")
	assert.True(t, IsNotFound(err))
}

func TestListSnapshots_Filters(t *testing.T) {
	started := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	fake := &fakeEC2{
		snapshotPages: map[string]*ec2.DescribeSnapshotsOutput{
			"": {
				Snapshots: []types.Snapshot{
					{SnapshotId: aws.String("snap-1"), VolumeId: aws.String("vol-1"), VolumeSize: aws.Int32(8), StartTime: &started},
				},
			},
		},
	}
	client := NewEC2ClientWithAPI(fake, "us-east-1")

	snaps, err := client.ListSnapshots(context.Background(), "vol-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "snap-1", snaps[0].SnapshotID)
	assert.Equal(t, "vol-1", snaps[0].VolumeID)
	assert.Equal(t, 8, snaps[0].Size)
	assert.Equal(t, started, snaps[0].StartTime)

	require.Len(t, fake.snapshotInputs, 1)
	in := fake.snapshotInputs[0]
	assert.Equal(t, []string{"self"}, in.OwnerIds)
	require.Len(t, in.Filters, 1)
	assert.Equal(t, "volume-id", aws.ToString(in.Filters[0].Name))
	assert.Equal(t, []string{"vol-1"}, in.Filters[0].Values)

	_, err = client.ListSnapshots(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, fake.snapshotInputs[1].Filters)
}

func TestCreateTags(t *testing.T) {
	fake := &fakeEC2{}
	client := NewEC2ClientWithAPI(fake, "us-east-1")

	err := client.CreateTags(context.Background(), []string{"vol-1"}, []models.Tag{{Key: "Name", Value: "web-1"}})
	require.NoError(t, err)

	require.Len(t, fake.tagInputs, 1)
	assert.Equal(t, []string{"vol-1"}, fake.tagInputs[0].Resources)
	assert.Equal(t, []types.Tag{tag("Name", "web-1")}, fake.tagInputs[0].Tags)
}

func TestListRegions(t *testing.T) {
	fake := &fakeEC2{
		regions: []types.Region{
			{RegionName: aws.String("us-west-2"), OptInStatus: aws.String("opt-in-not-required")},
			{RegionName: aws.String("af-south-1"), OptInStatus: aws.String("not-opted-in")},
			{RegionName: aws.String("ap-east-1"), OptInStatus: aws.String("opted-in")},
			{RegionName: aws.String("eu-west-1")},
		},
	}

	regions, err := NewEC2ClientWithAPI(fake, "us-east-1").ListRegions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ap-east-1", "eu-west-1", "us-west-2"}, regions)
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("InvalidVolume.NotFound"), false},
		{"volume", &smithy.GenericAPIError{Code: "InvalidVolume.NotFound"}, true},
		{"wrapped snapshot", fmt.Errorf("ctx: %w", &smithy.GenericAPIError{Code: "InvalidSnapshot.NotFound"}), true},
		{"throttle", &smithy.GenericAPIError{Code: "RequestLimitExceeded"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}

type fakeRegionGetter struct {
	region string
	err    error
}

func (f fakeRegionGetter) GetRegion(context.Context, *imds.GetRegionInput, ...func(*imds.Options)) (*imds.GetRegionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &imds.GetRegionOutput{Region: f.region}, nil
}

func TestDefaultRegion(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "eu-west-1", DefaultRegion(ctx, aws.Config{Region: "eu-west-1"}, fakeRegionGetter{region: "ap-east-1"}))
	assert.Equal(t, "ap-east-1", DefaultRegion(ctx, aws.Config{}, fakeRegionGetter{region: "ap-east-1"}))
	assert.Equal(t, "us-east-1", DefaultRegion(ctx, aws.Config{}, fakeRegionGetter{err: errors.New("no imds")}))
	assert.Equal(t, "us-east-1", DefaultRegion(ctx, aws.Config{}, nil))
}

func TestLoadConfig_ProfileNotFound(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config")
	require.NoError(t, os.WriteFile(configFile, []byte("[profile dev]\nregion = eu-west-1\n"), 0o600))
	credsFile := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(credsFile, []byte(""), 0o600))

	t.Setenv("AWS_CONFIG_FILE", configFile)
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", credsFile)
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	_, err := LoadConfig(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	cfg, err := LoadConfig(context.Background(), "dev", "")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
}
