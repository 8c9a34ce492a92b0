package test

import (
	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/roles"
)

// TestBackend is a backend that also stores role memberships.
type TestBackend interface {
	backend.Backend
	roles.Store
}
