package types

// Status is the row-level status of a persisted record.
// It is independent of business statuses such as SubscriptionStatus and
// is used to exclude administratively deleted rows from queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)
