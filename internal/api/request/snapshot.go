package request

// GenerateSnapshotRequest triggers snapshot generation for a user. Date is
// YYYY-MM-DD; empty means today.
type GenerateSnapshotRequest struct {
	UserID string `json:"userId"`
	Date   string `json:"date,omitempty"`
}
