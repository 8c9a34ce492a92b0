package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/cschleiden/go-workflow-tasks/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type runFunc func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error

type cli struct {
	v          *viper.Viper
	configFile string
}

func newRootCommand() *cobra.Command {
	c := &cli{v: newViper()}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Assign, complete and query workflow tasks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configFile, "config", "", "config file (default ./taskctl.yaml)")
	pf.String("backend", "", "backend: memory, sqlite, mysql or redis")
	pf.String("sqlite-path", "", "sqlite database file")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("trace-exporter", "", "trace exporter: none, stdout or otlp")

	c.bind(pf, "backend", "backend")
	c.bind(pf, "sqlite.path", "sqlite-path")
	c.bind(pf, "log.level", "log-level")
	c.bind(pf, "tracing.exporter", "trace-exporter")

	root.AddCommand(
		c.seedCommand(),
		c.getCommand(),
		c.listCommand(),
		c.countCommand(),
		c.assignRoleCommand(),
		c.assignUserCommand(),
		c.completeCommand(),
		c.transitionsCommand(),
		c.serveCommand(),
	)

	return root
}

func (c *cli) bind(fs *pflag.FlagSet, key, flag string) {
	if err := c.v.BindPFlag(key, fs.Lookup(flag)); err != nil {
		panic(err)
	}
}

// run sets up the app for the duration of one command.
func (c *cli) run(fn runFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(c.v, c.configFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		defer func() {
			err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
		}()

		return fn(ctx, cmd, a, args)
	}
}

func (c *cli) seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Grant roles and create tasks from a YAML seed file",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			ids, err := seedFromFile(ctx, a, args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), ids)
		}),
	}
}

func seedFromFile(ctx context.Context, a *app, path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	sf, err := parseSeed(f)
	if err != nil {
		return nil, err
	}

	ids, err := sf.apply(ctx, a.backend, a.roles, a.backend.Options().Clock.Now())
	if err != nil {
		return nil, err
	}

	a.logger.Info("Seeded tasks", "file", path, "grants", len(sf.Grants), "tasks", len(ids))

	return ids, nil
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get TASK",
		Short: "Print a task",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			t, err := a.manager.GetWorkflowTask(ctx, taskID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), t)
		}),
	}
}

// filterFlags selects tasks by exactly one of user, role or workflow instance.
type filterFlags struct {
	user, role, instance int64
	completed            string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.user, "user", 0, "tasks assigned to this user")
	fs.Int64Var(&f.role, "role", 0, "unclaimed tasks pooled to this role")
	fs.Int64Var(&f.instance, "instance", 0, "tasks of this workflow instance")
	fs.StringVar(&f.completed, "completed", "any", "completion filter: any, completed or pending")
}

func (f *filterFlags) selector(fs *pflag.FlagSet) (string, error) {
	var selected []string
	for _, name := range []string{"user", "role", "instance"} {
		if fs.Changed(name) {
			selected = append(selected, name)
		}
	}

	if len(selected) != 1 {
		return "", errors.New("exactly one of --user, --role or --instance is required")
	}

	return selected[0], nil
}

func (c *cli) listCommand() *cobra.Command {
	var (
		f          filterFlags
		start, end int
		order      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by user, role or workflow instance",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			sel, err := f.selector(cmd.Flags())
			if err != nil {
				return err
			}

			completion, err := core.ParseCompletion(f.completed)
			if err != nil {
				return err
			}

			orderBy, err := core.ParseOrderBy(order)
			if err != nil {
				return err
			}

			m := a.manager
			switch sel {
			case "user":
				tasks, err := m.GetWorkflowTasksByUser(ctx, f.user, completion, start, end, orderBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)

			case "role":
				tasks, err := m.GetWorkflowTasksByRole(ctx, f.role, completion, start, end, orderBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)

			default:
				tasks, err := m.GetWorkflowTasksByWorkflowInstance(ctx, f.instance, completion, start, end, orderBy)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tasks)
			}
		}),
	}

	f.register(cmd.Flags())
	cmd.Flags().IntVar(&start, "start", core.All, "first position of the page, inclusive")
	cmd.Flags().IntVar(&end, "end", core.All, "last position of the page, exclusive")
	cmd.Flags().StringVar(&order, "order", "", `order, e.g. "due_date desc,name"`)

	return cmd
}

func (c *cli) countCommand() *cobra.Command {
	var f filterFlags

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count tasks by user, role or workflow instance",
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			sel, err := f.selector(cmd.Flags())
			if err != nil {
				return err
			}

			completion, err := core.ParseCompletion(f.completed)
			if err != nil {
				return err
			}

			var count int
			switch sel {
			case "user":
				count, err = a.manager.GetWorkflowTaskCountByUser(ctx, f.user, completion)
			case "role":
				count, err = a.manager.GetWorkflowTaskCountByRole(ctx, f.role, completion)
			default:
				count, err = a.manager.GetWorkflowTaskCountByWorkflowInstance(ctx, f.instance, completion)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), count)
			return err
		}),
	}

	f.register(cmd.Flags())

	return cmd
}

// mutationFlags are shared by the commands changing a task.
type mutationFlags struct {
	user    int64
	comment string
	vars    []string
}

func (f *mutationFlags) register(fs *pflag.FlagSet) {
	fs.Int64Var(&f.user, "user", 0, "acting user")
	fs.StringVar(&f.comment, "comment", "", "comment to record")
	fs.StringArrayVar(&f.vars, "var", nil, "variable to merge, as key=value (repeatable)")
}

func (c *cli) assignRoleCommand() *cobra.Command {
	var f mutationFlags

	cmd := &cobra.Command{
		Use:   "assign-role TASK ROLE",
		Short: "Pool a task to a role",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			roleID, err := parseID("role", args[1])
			if err != nil {
				return err
			}

			vars, err := parseVars(f.vars)
			if err != nil {
				return err
			}

			t, err := a.manager.AssignWorkflowTaskToRole(ctx, f.user, taskID, roleID, f.comment, vars)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), t)
		}),
	}

	f.register(cmd.Flags())

	return cmd
}

func (c *cli) assignUserCommand() *cobra.Command {
	var f mutationFlags

	cmd := &cobra.Command{
		Use:   "assign-user TASK ASSIGNEE",
		Short: "Assign a task to a user holding its pooled role",
		Args:  cobra.ExactArgs(2),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			assigneeID, err := parseID("assignee", args[1])
			if err != nil {
				return err
			}

			vars, err := parseVars(f.vars)
			if err != nil {
				return err
			}

			t, err := a.manager.AssignWorkflowTaskToUser(ctx, f.user, taskID, assigneeID, f.comment, vars)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), t)
		}),
	}

	f.register(cmd.Flags())

	return cmd
}

func (c *cli) completeCommand() *cobra.Command {
	var (
		f          mutationFlags
		transition string
	)

	cmd := &cobra.Command{
		Use:   "complete TASK",
		Short: "Complete a task assigned to the acting user",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			vars, err := parseVars(f.vars)
			if err != nil {
				return err
			}

			t, err := a.manager.CompleteWorkflowTask(ctx, f.user, taskID, transition, f.comment, vars)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), t)
		}),
	}

	f.register(cmd.Flags())
	cmd.Flags().StringVar(&transition, "transition", "", "transition to take (default: the node's first)")

	return cmd
}

func (c *cli) transitionsCommand() *cobra.Command {
	var user int64

	cmd := &cobra.Command{
		Use:   "transitions TASK",
		Short: "List the transitions a task assigned to the user can take",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			taskID, err := parseID("task", args[0])
			if err != nil {
				return err
			}

			names, err := a.manager.GetNextTransitionNames(ctx, user, taskID)
			if err != nil {
				return err
			}

			return printJSON(cmd.OutOrStdout(), names)
		}),
	}

	cmd.Flags().Int64Var(&user, "user", 0, "user the task is assigned to")

	return cmd
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", name, s)
	}

	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
