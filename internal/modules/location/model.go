// README: Worker availability snapshot kept in the location cache.
package location

import (
	"time"

	"usta/internal/types"
)

// Snapshot is one worker's last reported position plus the attributes
// the matcher filters on. Each location ping replaces the record
// wholesale; there is no partial merge.
type Snapshot struct {
	WorkerID    types.ID    `json:"worker_id"`
	Role        string      `json:"role"`
	Status      string      `json:"status"`
	IsActive    bool        `json:"is_active"`
	JobCategory int64       `json:"job_category"`
	JobIDs      []int64     `json:"job_ids"`
	Region      int64       `json:"region"`
	City        int64       `json:"city"`
	Gender      string      `json:"gender"`
	Position    types.Point `json:"position"`
	// DeviceToken carries the worker's FCM registration token so offers
	// can also reach a backgrounded app. Optional.
	DeviceToken string    `json:"device_token,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}
