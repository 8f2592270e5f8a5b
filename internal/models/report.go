package models

import "time"

// Resource kinds that can receive a tag
const (
	ResourceVolume   = "volume"
	ResourceSnapshot = "snapshot"
)

// TagAction records a single tag copied onto a resource
type TagAction struct {
	ResourceID   string
	ResourceKind string
	SourceID     string // Instance or volume the tag was copied from
	Key          string
	Value        string
	Size         int
	StartTime    *time.Time // Snapshots only
	DryRun       bool
}

// RegionReport collects the outcome of tagging one region
type RegionReport struct {
	Region            string
	ScannedVolumes    int
	UntaggedVolumes   int
	TaggedVolumes     []TagAction
	TaggedSnapshots   []TagAction
	UnattachedVolumes []string
	UntaggedInstances []string
	UnnamedInstances  []string // Tagged, but without the propagated key
	FilteredValues    []string // Values rejected by the name filter
	MissingVolumes    []string // Snapshot source volumes that returned NotFound
	Duration          time.Duration
}

// TotalTagged returns the number of resources that received a tag
func (r *RegionReport) TotalTagged() int {
	return len(r.TaggedVolumes) + len(r.TaggedSnapshots)
}
