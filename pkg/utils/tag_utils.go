package utils

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/younsl/voltag/internal/models"
)

// NameTagKey is the tag key propagated by default
const NameTagKey = "Name"

// FindTag returns the first tag with the given key in API order
func FindTag(tags []models.Tag, key string) (models.Tag, bool) {
	for _, tag := range tags {
		if tag.Key == key {
			return tag, true
		}
	}
	return models.Tag{}, false
}

// GetTagValue returns the value of a tag with the given key
func GetTagValue(tags []models.Tag, key string) string {
	tag, _ := FindTag(tags, key)
	return tag.Value
}

// GetName returns the value of the Name tag
func GetName(tags []models.Tag) string {
	return GetTagValue(tags, NameTagKey)
}

// HasTag checks if a resource has a tag with the given key
func HasTag(tags []models.Tag, key string) bool {
	_, ok := FindTag(tags, key)
	return ok
}

// FromEC2Tags converts SDK tags, dropping entries without a key
func FromEC2Tags(tags []types.Tag) []models.Tag {
	if len(tags) == 0 {
		return nil
	}
	result := make([]models.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.Key == nil {
			continue
		}
		result = append(result, models.Tag{
			Key:   *tag.Key,
			Value: SafeDeref(tag.Value),
		})
	}
	return result
}

// ConvertToEC2Tags converts model tags to a slice of EC2 tags
func ConvertToEC2Tags(tags []models.Tag) []types.Tag {
	result := make([]types.Tag, 0, len(tags))
	for _, tag := range tags {
		result = append(result, types.Tag{
			Key:   aws.String(tag.Key),
			Value: aws.String(tag.Value),
		})
	}
	return result
}
