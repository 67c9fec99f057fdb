package domain

import (
	"strings"
	"time"
)

// ProfileType classifies what a profile is for. It drives the default
// dashboard and the profile-type predicates used by the UI shell.
type ProfileType string

const (
	ProfileOwner      ProfileType = "OWNER"
	ProfilePharmacist ProfileType = "PHARMACIST"
	ProfileAttendant  ProfileType = "ATTENDANT"
	ProfileCompounder ProfileType = "COMPOUNDER"
	ProfileCustom     ProfileType = "CUSTOM"
)

// legacyProfileTypes maps the spellings stored by the older back-office
// schema onto the canonical profile types.
var legacyProfileTypes = map[string]ProfileType{
	"PROPRIETARIO": ProfileOwner,
	"FARMACEUTICO": ProfilePharmacist,
	"ATENDENTE":    ProfileAttendant,
	"MANIPULADOR":  ProfileCompounder,
	"CUSTOMIZADO":  ProfileCustom,
}

// ParseProfileType normalizes a stored profile type. Unknown values yield
// the empty ProfileType, which callers treat as unrecognized.
func ParseProfileType(s string) ProfileType {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch t := ProfileType(v); t {
	case ProfileOwner, ProfilePharmacist, ProfileAttendant, ProfileCompounder, ProfileCustom:
		return t
	}
	return legacyProfileTypes[v]
}

// Valid reports whether t is one of the known profile types.
func (t ProfileType) Valid() bool {
	switch t {
	case ProfileOwner, ProfilePharmacist, ProfileAttendant, ProfileCompounder, ProfileCustom:
		return true
	}
	return false
}

// Profile groups users that share a permission set and a default dashboard.
type Profile struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Type             ProfileType   `json:"type"`
	DefaultDashboard DashboardKind `json:"default_dashboard,omitempty"`
}

// User is the back-office user record resolved for an identity subject.
type User struct {
	ID           string     `json:"id"`
	SubjectID    string     `json:"subject_id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Phone        string     `json:"phone,omitempty"`
	ProfileID    string     `json:"profile_id"`
	Profile      *Profile   `json:"profile,omitempty"`
	Active       bool       `json:"active"`
	LastAccessAt *time.Time `json:"last_access_at,omitempty"`
}

// ProfileType returns the user's profile type, or "" when no profile is attached.
func (u *User) ProfileType() ProfileType {
	if u == nil || u.Profile == nil {
		return ""
	}
	return u.Profile.Type
}
