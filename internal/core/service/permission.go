package service

import "github.com/pharmaai/backoffice-auth/internal/core/domain"

// Evaluate is the sole authorization primitive. It reports whether perms
// holds an allowed entry for module and action whose level satisfies the
// requested one. LevelAll on an entry satisfies any request; OWN and TEAM
// only satisfy an equal request. Omitting level matches any entry level.
// An empty set denies.
//
// Entries must carry Allowed: a row stored without the flag denies even
// though it matches. This is stricter than a match on the key and level
// alone, and is intended.
func Evaluate(perms []domain.Permission, module domain.Module, action domain.Action, level ...domain.Level) bool {
	var want domain.Level
	if len(level) > 0 {
		want = level[0]
	}
	for _, p := range perms {
		if p.Module != module || p.Action != action || !p.Allowed {
			continue
		}
		if want == "" || p.Level == want || p.Level == domain.LevelAll {
			return true
		}
	}
	return false
}

// CanAccessFinance reports read access to the finance module.
func CanAccessFinance(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleFinance, domain.ActionRead)
}

// CanManageUsers reports whether users can be created.
func CanManageUsers(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleUsers, domain.ActionCreate)
}

func CanApproveCompounding(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleCompounding, domain.ActionApprove)
}

func CanViewReports(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleReports, domain.ActionRead)
}

func CanExportData(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleReports, domain.ActionExport)
}

func CanEditSettings(perms []domain.Permission) bool {
	return Evaluate(perms, domain.ModuleSettings, domain.ActionUpdate)
}

// IsOwner and the predicates below are nil-safe checks on the profile type
// of a session's user.
func IsOwner(s *domain.Session) bool      { return hasProfileType(s, domain.ProfileOwner) }
func IsPharmacist(s *domain.Session) bool { return hasProfileType(s, domain.ProfilePharmacist) }
func IsAttendant(s *domain.Session) bool  { return hasProfileType(s, domain.ProfileAttendant) }
func IsCompounder(s *domain.Session) bool { return hasProfileType(s, domain.ProfileCompounder) }

func hasProfileType(s *domain.Session, t domain.ProfileType) bool {
	return s != nil && s.User.ProfileType() == t
}
