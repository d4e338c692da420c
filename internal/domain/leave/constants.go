package leave

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}
