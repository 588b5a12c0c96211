package entity

import "fmt"

// AccessLevel is the declared access of a team or an outside collaborator
// on a repository. GitHub uses a different vocabulary on the wire
// (pull/triage/push/maintain/admin); the mapping is total on both ends.
type AccessLevel string

const (
	AccessRead     AccessLevel = "read"
	AccessTriage   AccessLevel = "triage"
	AccessWrite    AccessLevel = "write"
	AccessMaintain AccessLevel = "maintain"
	AccessAdmin    AccessLevel = "admin"
)

func ParseAccessLevel(s string) (AccessLevel, error) {
	switch AccessLevel(s) {
	case AccessRead, AccessTriage, AccessWrite, AccessMaintain, AccessAdmin:
		return AccessLevel(s), nil
	}
	return "", fmt.Errorf("unknown access level: %q", s)
}

// GithubPermission returns the GitHub-native permission name.
func (l AccessLevel) GithubPermission() string {
	switch l {
	case AccessRead:
		return "pull"
	case AccessWrite:
		return "push"
	default:
		return string(l)
	}
}

// AccessLevelFromGithubPermission maps a GitHub permission name back to
// an AccessLevel.
func AccessLevelFromGithubPermission(p string) (AccessLevel, bool) {
	switch p {
	case "pull", "read":
		return AccessRead, true
	case "triage":
		return AccessTriage, true
	case "push", "write":
		return AccessWrite, true
	case "maintain":
		return AccessMaintain, true
	case "admin":
		return AccessAdmin, true
	}
	return "", false
}

// AccessLevelFromPermissions decodes a permissions bitmap as returned by
// the collaborator and team APIs: the highest true flag wins, checked in
// the order admin, maintain, push, triage, pull.
func AccessLevelFromPermissions(perms map[string]bool) (AccessLevel, bool) {
	for _, p := range []string{"admin", "maintain", "push", "triage", "pull"} {
		if perms[p] {
			return AccessLevelFromGithubPermission(p)
		}
	}
	return "", false
}
