package domain

// SubjectType identifies who acted on a ticket. Requesters have no account
// and are identified by email.
type SubjectType string

const (
	SubjectTypeUser   SubjectType = "USER"
	SubjectTypeStaff  SubjectType = "STAFF"
	SubjectTypeSystem SubjectType = "SYSTEM"
)
