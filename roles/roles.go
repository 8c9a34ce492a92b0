// Package roles answers role membership questions for task assignment.
package roles

import "context"

// Service checks whether a user holds a role.
type Service interface {
	HasUserRole(ctx context.Context, userID, roleID int64) (bool, error)
}

// Store is a Service that also manages memberships. Task backends implement Store so they can
// double as the membership source.
type Store interface {
	Service

	GrantRole(ctx context.Context, userID, roleID int64) error

	RevokeRole(ctx context.Context, userID, roleID int64) error
}
