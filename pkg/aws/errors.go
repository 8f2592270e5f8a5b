package aws

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// IsNotFound reports whether err is an EC2 API error such as
// InvalidVolume.NotFound or InvalidInstanceID.NotFound.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.HasSuffix(apiErr.ErrorCode(), ".NotFound")
}
