package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cschleiden/go-workflow-tasks/backend"
	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/cschleiden/go-workflow-tasks/roles"
	"gopkg.in/yaml.v3"
)

// seedFile describes role grants and tasks to create, e.g.
//
//	grants:
//	  - user: 2
//	    role: 100
//	tasks:
//	  - workflow_instance: 10
//	    name: review
//	    transitions: [approve, reject]
//	    roles: [100]
//	    variables:
//	      amount: 250
type seedFile struct {
	Grants []seedGrant `yaml:"grants"`
	Tasks  []seedTask  `yaml:"tasks"`
}

type seedGrant struct {
	User int64 `yaml:"user"`
	Role int64 `yaml:"role"`
}

type seedTask struct {
	WorkflowInstance int64  `yaml:"workflow_instance"`
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`

	// Node defaults to Name.
	Node        string   `yaml:"node"`
	Transitions []string `yaml:"transitions"`

	Assignee int64   `yaml:"assignee"`
	Roles    []int64 `yaml:"roles"`

	Priority  int            `yaml:"priority"`
	Due       *time.Time     `yaml:"due"`
	Variables map[string]any `yaml:"variables"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)

	sf := &seedFile{}
	if err := d.Decode(sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding seed file: %w", err)
	}

	for i, t := range sf.Tasks {
		if t.Name == "" {
			return nil, fmt.Errorf("seed task %d: name is required", i)
		}

		if t.Assignee != 0 && len(t.Roles) > 0 {
			return nil, fmt.Errorf("seed task %d: assignee and roles cannot be combined", i)
		}
	}

	return sf, nil
}

func (t *seedTask) taskInstance(now time.Time) (*core.TaskInstance, error) {
	nodeName := t.Node
	if nodeName == "" {
		nodeName = t.Name
	}

	node := &core.TaskNode{Name: nodeName}
	for _, tr := range t.Transitions {
		node.Transitions = append(node.Transitions, core.Transition{Name: tr})
	}

	ti := core.NewTaskInstance(t.WorkflowInstance, t.Name, node, now)
	ti.Description = t.Description
	ti.Priority = t.Priority

	if t.Due != nil {
		due := t.Due.UTC()
		ti.DueAt = &due
	}

	if t.Assignee != 0 {
		ti.ActorID = strconv.FormatInt(t.Assignee, 10)
	}

	for _, r := range t.Roles {
		ti.PooledActors = append(ti.PooledActors, strconv.FormatInt(r, 10))
	}

	vars, err := core.VariablesFrom(t.Variables)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", t.Name, err)
	}

	ti.AddVariables(vars)

	return ti, nil
}

// apply grants the roles and creates the tasks in a single session. It returns the new task ids in
// file order.
func (sf *seedFile) apply(ctx context.Context, b backend.Backend, rs roles.Store, now time.Time) ([]int64, error) {
	for _, g := range sf.Grants {
		if err := rs.GrantRole(ctx, g.User, g.Role); err != nil {
			return nil, fmt.Errorf("granting role %d to user %d: %w", g.Role, g.User, err)
		}
	}

	s, err := b.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	defer s.Close()

	ids := make([]int64, 0, len(sf.Tasks))
	for _, t := range sf.Tasks {
		ti, err := t.taskInstance(now)
		if err != nil {
			return nil, err
		}

		if err := s.SaveTaskInstance(ctx, ti); err != nil {
			return nil, fmt.Errorf("saving task %q: %w", t.Name, err)
		}

		ids = append(ids, ti.ID)
	}

	if err := s.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing seed: %w", err)
	}

	return ids, nil
}
