package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/kaushalacts/research-ai-platform/internal/domain"
	"github.com/kaushalacts/research-ai-platform/internal/platform/sqlstore"
	"github.com/kaushalacts/research-ai-platform/internal/store"
	"github.com/spf13/cobra"
)

// withApplication opens the environment, builds the application and runs fn.
// Logs go to stderr.
func withApplication(ctx context.Context, opts *globalOptions, fn func(*application) error) error {
	env, err := openEnvironment(ctx, opts, os.Stderr)
	if err != nil {
		return err
	}
	defer env.close()

	app, err := newApplication(ctx, env)
	if err != nil {
		return err
	}
	return fn(app)
}

func migrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(ctx context.Context, fn func(*sqlstore.Migrator) error) error {
		env, err := openEnvironment(ctx, opts, os.Stderr)
		if err != nil {
			return err
		}
		defer env.close()

		m, err := sqlstore.NewMigrator(env.db, env.dialect, env.logger)
		if err != nil {
			return err
		}
		return fn(m)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *sqlstore.Migrator) error {
					return m.Up(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *sqlstore.Migrator) error {
					return m.Down(cmd.Context())
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *sqlstore.Migrator) error {
					states, err := m.Status(cmd.Context())
					if err != nil {
						return err
					}
					return newPrinter(opts.output, cmd.OutOrStdout()).
						print(states, table.Row{"Version", "Source", "Applied", "Applied At"}, migrationRows(states))
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m *sqlstore.Migrator) error {
					v, err := m.Version(cmd.Context())
					if err != nil {
						return err
					}
					value := map[string]int64{"version": v}
					return newPrinter(opts.output, cmd.OutOrStdout()).
						print(value, table.Row{"Version"}, []table.Row{{v}})
				})
			},
		},
	)
	return cmd
}

func sweepCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Probe every active service once and record the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(app *application) error {
				if err := app.seedServices(cmd.Context()); err != nil {
					return fmt.Errorf("failed to seed services: %w", err)
				}
				results, err := app.monitor.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				return newPrinter(opts.output, cmd.OutOrStdout()).
					print(results, table.Row{"Service", "Healthy", "Checked At"}, healthRows(results))
			})
		},
	}
}

func tasksCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and cancel analysis tasks",
	}
	cmd.AddCommand(tasksListCmd(opts), tasksShowCmd(opts), tasksCancelCmd(opts))
	return cmd
}

type taskListFlags struct {
	status      string
	taskType    string
	projectID   string
	requestedBy string
	limit       int
	offset      int
}

func (f taskListFlags) filter() (store.TaskFilter, error) {
	filter := store.TaskFilter{
		Status:      domain.TaskStatus(f.status),
		Type:        domain.TaskType(f.taskType),
		RequestedBy: f.requestedBy,
		Limit:       f.limit,
		Offset:      f.offset,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return filter, fmt.Errorf("unknown status %q", f.status)
	}
	if filter.Type != "" && !filter.Type.IsValid() {
		return filter, fmt.Errorf("unknown task type %q", f.taskType)
	}
	if f.projectID != "" {
		id, err := uuid.Parse(f.projectID)
		if err != nil {
			return filter, fmt.Errorf("invalid project id %q: %w", f.projectID, err)
		}
		filter.ProjectID = id
	}
	if filter.Limit <= 0 {
		return filter, fmt.Errorf("limit must be positive")
	}
	if filter.Offset < 0 {
		return filter, fmt.Errorf("offset cannot be negative")
	}
	return filter, nil
}

func tasksListCmd(opts *globalOptions) *cobra.Command {
	var flags taskListFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}
			return withApplication(cmd.Context(), opts, func(app *application) error {
				tasks, err := app.taskStore.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return newPrinter(opts.output, cmd.OutOrStdout()).print(tasks, taskHeader, taskRows(tasks))
			})
		},
	}

	cmd.Flags().StringVar(&flags.status, "status", "", "filter by status (queued, processing, completed, failed)")
	cmd.Flags().StringVar(&flags.taskType, "type", "", "filter by task type")
	cmd.Flags().StringVar(&flags.projectID, "project", "", "filter by project id")
	cmd.Flags().StringVar(&flags.requestedBy, "requested-by", "", "filter by requester")
	cmd.Flags().IntVar(&flags.limit, "limit", 50, "maximum number of tasks")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "number of tasks to skip")
	return cmd
}

// taskDetail is the structured output of tasks show.
type taskDetail struct {
	Task   *domain.AnalysisTask `json:"task"`
	Events []*domain.TaskEvent  `json:"events"`
}

func tasksShowCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show one task and its event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}
			return withApplication(cmd.Context(), opts, func(app *application) error {
				t, err := app.dispatcher.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				evts, err := app.eventStore.ListByTask(cmd.Context(), id)
				if err != nil {
					return err
				}

				p := newPrinter(opts.output, cmd.OutOrStdout())
				if opts.output != outputTable {
					return p.print(taskDetail{Task: t, Events: evts}, nil, nil)
				}
				if err := p.print(nil, table.Row{"Field", "Value"}, taskFieldRows(t)); err != nil {
					return err
				}
				return p.print(nil, table.Row{"Event", "Status", "Detail", "At"}, eventRows(evts))
			})
		},
	}
}

func tasksCancelCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TASK_ID",
		Short: "Cancel a queued or processing task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}
			return withApplication(cmd.Context(), opts, func(app *application) error {
				t, err := app.dispatcher.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				tasks := []*domain.AnalysisTask{t}
				return newPrinter(opts.output, cmd.OutOrStdout()).print(t, taskHeader, taskRows(tasks))
			})
		},
	}
}

func servicesCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Inspect remote service registrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List service registrations with their health counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApplication(cmd.Context(), opts, func(app *application) error {
				regs, err := app.serviceStore.List(cmd.Context())
				if err != nil {
					return err
				}
				return newPrinter(opts.output, cmd.OutOrStdout()).print(regs,
					table.Row{"Name", "Base URL", "Active", "Healthy", "Last Checked", "Total", "Failed"},
					serviceRows(regs))
			})
		},
	})
	return cmd
}

var taskHeader = table.Row{"ID", "Type", "Status", "Service", "Created", "Updated"}

func taskRows(tasks []*domain.AnalysisTask) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, table.Row{
			t.ID.String(),
			string(t.Type),
			string(t.Status),
			orDash(t.ServiceName),
			formatTime(t.CreatedAt),
			formatTime(t.UpdatedAt),
		})
	}
	return rows
}

func taskFieldRows(t *domain.AnalysisTask) []table.Row {
	targets := make([]string, 0, len(t.TargetIDs))
	for _, id := range t.TargetIDs {
		targets = append(targets, id.String())
	}
	rows := []table.Row{
		{"ID", t.ID.String()},
		{"Project", t.ProjectID.String()},
		{"Type", string(t.Type)},
		{"Status", string(t.Status)},
		{"Requested By", orDash(t.RequestedBy)},
		{"Targets", strconv.Itoa(len(targets))},
		{"Service", orDash(t.ServiceName)},
		{"Remote Task", orDash(t.RemoteTaskID)},
		{"Agent", orDash(t.AgentUsed)},
		{"Error", orDash(t.ErrorReason)},
		{"Created", formatTime(t.CreatedAt)},
		{"Updated", formatTime(t.UpdatedAt)},
		{"Completed", formatTimePtr(t.CompletedAt)},
	}
	for _, id := range targets {
		rows = append(rows, table.Row{"Target", id})
	}
	return rows
}

func eventRows(evts []*domain.TaskEvent) []table.Row {
	rows := make([]table.Row, 0, len(evts))
	for _, e := range evts {
		rows = append(rows, table.Row{string(e.Type), string(e.Status), orDash(e.Detail), formatTime(e.CreatedAt)})
	}
	return rows
}

func serviceRows(regs []*domain.ServiceRegistration) []table.Row {
	rows := make([]table.Row, 0, len(regs))
	for _, r := range regs {
		rows = append(rows, table.Row{
			r.Name,
			r.BaseURL,
			r.Active,
			r.Healthy,
			formatTimePtr(r.LastCheckedAt),
			r.TotalRequests,
			r.FailedRequests,
		})
	}
	return rows
}

func healthRows(results []domain.HealthResult) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for _, r := range results {
		rows = append(rows, table.Row{r.Name, r.Healthy, formatTime(r.CheckedAt)})
	}
	return rows
}

func migrationRows(states []sqlstore.MigrationState) []table.Row {
	rows := make([]table.Row, 0, len(states))
	for _, s := range states {
		rows = append(rows, table.Row{s.Version, s.Source, s.Applied, orDash(s.AppliedAt)})
	}
	return rows
}
