package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleTeamLead, StaffRoleAdmin:
		return true
	}
	return false
}

// ReportRoles may read SLA compliance reports.
var ReportRoles = []StaffRole{StaffRoleTeamLead, StaffRoleAdmin}

// StaffMember is an IT operator who triages tickets. Only administrators
// may change business hours, holidays or SLA budgets.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanConfigureCalendar reports whether the member may edit calendar and SLA data.
func (s *StaffMember) CanConfigureCalendar() bool {
	return s != nil && s.Active && s.Role == StaffRoleAdmin
}
