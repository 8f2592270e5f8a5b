package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"

	"github.com/younsl/voltag/internal/log"
	"github.com/younsl/voltag/pkg/utils"
)

// ErrProfileNotFound is returned when the named shared config profile does not exist
var ErrProfileNotFound = errors.New("AWS Profile not found")

// LoadConfig loads the shared config for profile. An empty region keeps the
// region from the profile or environment.
func LoadConfig(ctx context.Context, profile, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		if isProfileNotExist(err) {
			return aws.Config{}, fmt.Errorf("%w: %s", ErrProfileNotFound, profile)
		}
		return aws.Config{}, fmt.Errorf("error loading AWS config: %w", err)
	}

	log.Debugf("config loaded: profile=%s region=%s", profile, cfg.Region)
	return cfg, nil
}

// Some credential providers re-wrap the shared config error as text only.
func isProfileNotExist(err error) bool {
	var notExist config.SharedConfigProfileNotExistError
	if errors.As(err, &notExist) {
		return true
	}
	return strings.Contains(err.Error(), "failed to get shared config profile")
}

// RegionGetter is the part of the IMDS client used to discover the local region
type RegionGetter interface {
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// DefaultRegion returns the region from cfg, else the instance metadata region,
// else us-east-1. A nil getter skips the metadata lookup.
func DefaultRegion(ctx context.Context, cfg aws.Config, getter RegionGetter) string {
	if cfg.Region != "" {
		return cfg.Region
	}

	if getter != nil {
		out, err := getter.GetRegion(ctx, &imds.GetRegionInput{})
		if err == nil && out.Region != "" {
			log.Debugf("region from instance metadata: %s", out.Region)
			return out.Region
		}
		log.Debugf("instance metadata region unavailable: %v", err)
	}

	return utils.DefaultRegion
}

// NewIMDSClient creates an instance metadata client from cfg
func NewIMDSClient(cfg aws.Config) *imds.Client {
	return imds.NewFromConfig(cfg)
}
