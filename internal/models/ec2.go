package models

// InstanceInfo represents EC2 instance information
type InstanceInfo struct {
	InstanceID string
	Tags       []Tag
	Region     string
}
