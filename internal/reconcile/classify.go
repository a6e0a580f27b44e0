package reconcile

import (
	"fmt"
	"strings"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/remote"
)

// Status is the health of one collection.
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// Item is the reconciliation of one collection. A nil count means it could
// not be read.
type Item struct {
	Key              string `json:"key"`
	DisplayName      string `json:"displayName"`
	LocalCount       *int64 `json:"localCount"`
	CloudCount       *int64 `json:"cloudCount"`
	Status           Status `json:"status"`
	Message          string `json:"message"`
	PermissionDenied bool   `json:"permissionDenied"`
}

// Classify decides the status of a collection from its two counts. A count
// error takes precedence over the count itself.
func Classify(key, displayName string, local, cloud *int64, localErr, cloudErr error) Item {
	item := Item{Key: key, DisplayName: displayName}
	if localErr == nil {
		item.LocalCount = local
	}
	if cloudErr == nil {
		item.CloudCount = cloud
	}

	var problems []string
	if localErr != nil || local == nil {
		msg := "local count unavailable"
		if localErr != nil {
			msg = "local count failed: " + localErr.Error()
		}
		problems = append(problems, msg)
	}
	if cloudErr != nil || cloud == nil {
		switch {
		case remote.IsPermissionDenied(cloudErr):
			item.PermissionDenied = true
			problems = append(problems, "permission denied reading cloud count: "+cloudErr.Error())
		case cloudErr != nil:
			problems = append(problems, "cloud count failed: "+cloudErr.Error())
		default:
			problems = append(problems, "cloud count unavailable")
		}
	}
	if len(problems) > 0 {
		item.Status = StatusError
		item.Message = strings.Join(problems, "; ")
		return item
	}

	diff := *cloud - *local
	switch {
	case diff == 0:
		item.Status = StatusOK
		item.Message = fmt.Sprintf("in sync (%d records)", *local)
	case diff > 0:
		item.Status = StatusWarning
		item.Message = fmt.Sprintf("cloud has %d more records than local (difference %+d)", diff, diff)
	default:
		item.Status = StatusWarning
		item.Message = fmt.Sprintf("local has %d more records than cloud (difference %+d)", -diff, diff)
	}
	return item
}
