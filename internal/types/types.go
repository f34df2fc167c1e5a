// README: Shared value types used across modules.
package types

// ID identifies a user or an order.
type ID string

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Actor roles. Accounting roles exist in the user table but never reach
// the dispatch engine.
const (
	RoleClient = "client"
	RoleWorker = "worker"
)

// Gender values as stored on users and orders. An empty value on an
// order means "no preference".
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

// Worker availability. Only the order coordinator flips these.
const (
	WorkerIdle    = "idle"
	WorkerWorking = "working"
)
