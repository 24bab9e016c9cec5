package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateMeetingID returns a globally unique meeting identifier. The random
// UUID makes collisions between independent deployments sharing one
// conferencing backend vanishingly unlikely; the timestamp suffix keeps IDs
// unique even if an entropy source misbehaves. Safe under concurrent use.
func GenerateMeetingID() string {
	return fmt.Sprintf("%s-%d", uuid.NewString(), time.Now().UnixMilli())
}

// GenerateInternalPassword returns a random placeholder password used for a
// room's API credentials until the conferencing server issues its own.
func GenerateInternalPassword() string {
	return uuid.NewString()
}
