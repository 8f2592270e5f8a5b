package models

import "time"

// Tag represents a key/value pair attached to an EC2 resource
type Tag struct {
	Key   string
	Value string
}

// VolumeInfo represents EBS volume information
type VolumeInfo struct {
	VolumeID         string
	Tags             []Tag
	Attachments      []string // Instance IDs in API order
	Size             int
	VolumeType       string
	State            string
	Region           string
	AvailabilityZone string
	CreationTime     time.Time
}

// Attached reports whether the volume has at least one attachment
func (v VolumeInfo) Attached() bool {
	return len(v.Attachments) > 0
}

// FirstInstanceID returns the instance of the first attachment, or ""
func (v VolumeInfo) FirstInstanceID() string {
	if len(v.Attachments) == 0 {
		return ""
	}
	return v.Attachments[0]
}

// SnapshotInfo represents EBS snapshot information
type SnapshotInfo struct {
	SnapshotID string
	VolumeID   string
	Tags       []Tag
	Size       int
	StartTime  time.Time
	Region     string
}
