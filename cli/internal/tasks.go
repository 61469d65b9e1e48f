package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/taskboard/internal/client"
)

func newTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and manage tasks",
	}

	cmd.AddCommand(newTasksListCommand())
	cmd.AddCommand(newTasksShowCommand())
	cmd.AddCommand(newTasksCreateCommand())
	cmd.AddCommand(newTasksUpdateCommand())
	cmd.AddCommand(newTasksDeleteCommand())

	return cmd
}

func newTasksListCommand() *cobra.Command {
	var (
		public bool
		group  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your tasks as a tree",
		Long: `List tasks with their subtasks.

Examples:
  # Tasks that are still open
  taskboard tasks list --status pending

  # Tasks visible without logging in
  taskboard tasks list --public`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if group != "" && group != "all" && !client.ValidTaskStatus(group) {
				return fmt.Errorf("invalid status %q (want pending, in_progress, done or all)", group)
			}

			var (
				tasks []client.Task
				err   error
			)
			if public {
				tasks, err = getCliContext(cmd).Session.API.PublicTasks(cmd.Context())
			} else {
				s, serr := requireSession(cmd)
				if serr != nil {
					return serr
				}
				tasks, err = s.API.Tasks(cmd.Context(), group)
			}
			if err != nil {
				return apiError(err)
			}

			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tasks")
				return nil
			}
			printTaskTree(cmd.OutOrStdout(), tasks, public)
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "List public tasks (no login needed)")
	cmd.Flags().StringVar(&group, "status", "", "Only tasks with this status (pending, in_progress, done, all)")
	cmd.Flags().StringVar(&group, "group", "", "Alias for --status")

	return cmd
}

// printTaskTree prints tasks with nested subtasks indented beneath them
func printTaskTree(w io.Writer, tasks []client.Task, showOwner bool) {
	var walk func(tasks []client.Task, depth int)
	walk = func(tasks []client.Task, depth int) {
		for _, t := range tasks {
			owner := ""
			if showOwner && t.UserInfo.Email != "" {
				owner = "  (" + t.UserInfo.Email + ")"
			}
			fmt.Fprintf(w, "%s%s #%d %s%s\n",
				strings.Repeat("  ", depth),
				statusMarker(t.Status),
				t.ID,
				t.Title,
				owner)
			walk(t.Subtasks, depth+1)
		}
	}
	walk(tasks, 0)
}

func statusMarker(status string) string {
	switch status {
	case client.TaskDone:
		return "[x]"
	case client.TaskInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func newTasksShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Show a task and its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			t, err := s.API.Task(cmd.Context(), id)
			if err != nil {
				return apiError(err)
			}

			var md strings.Builder
			fmt.Fprintf(&md, "# %s\n\n", t.Title)
			fmt.Fprintf(&md, "**Status:** %s  \n", t.Status)
			if t.UserInfo.Email != "" {
				fmt.Fprintf(&md, "**Owner:** %s  \n", t.UserInfo.Email)
			}
			if t.ParentID != nil {
				fmt.Fprintf(&md, "**Parent:** #%d  \n", *t.ParentID)
			}
			fmt.Fprintf(&md, "**Updated:** %s\n\n", t.UpdatedAt)
			if t.Description != "" {
				md.WriteString(t.Description)
				md.WriteString("\n\n")
			}
			if len(t.Subtasks) > 0 {
				md.WriteString("## Subtasks\n\n")
				for _, st := range t.Subtasks {
					fmt.Fprintf(&md, "- %s #%d %s\n", statusMarker(st.Status), st.ID, st.Title)
				}
			}

			return printMarkdown(cmd.OutOrStdout(), getCliContext(cmd).Config, md.String())
		},
	}
}

func newTasksCreateCommand() *cobra.Command {
	var (
		description string
		status      string
		parent      int64
	)

	cmd := &cobra.Command{
		Use:   "create TITLE",
		Short: "Create a task or subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !client.ValidTaskStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}

			in := client.TaskInput{
				Title:       args[0],
				Description: description,
				Status:      status,
			}
			if cmd.Flags().Changed("parent") {
				in.ParentID = &parent
			}

			t, err := s.API.CreateTask(cmd.Context(), in)
			if err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created task #%d\n", t.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Task description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "Initial status")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent task ID (creates a subtask)")

	return cmd
}

func newTasksUpdateCommand() *cobra.Command {
	var title, description, status string

	cmd := &cobra.Command{
		Use:   "update TASK_ID",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var in client.TaskPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				in.Title = &title
			}
			if flags.Changed("description") {
				in.Description = &description
			}
			if flags.Changed("status") {
				if !client.ValidTaskStatus(status) {
					return fmt.Errorf("invalid status %q", status)
				}
				in.Status = &status
			}
			if in == (client.TaskPatch{}) {
				return fmt.Errorf("nothing to update")
			}

			s, err := requireSession(cmd)
			if err != nil {
				return err
			}
			t, err := s.API.UpdateTask(cmd.Context(), id, in)
			if err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated task #%d (%s)\n", t.ID, t.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description (markdown)")
	cmd.Flags().StringVar(&status, "status", "", "New status (pending, in_progress, done)")

	return cmd
}

func newTasksDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TASK_ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := requireSession(cmd)
			if err != nil {
				return err
			}
			if err := s.API.DeleteTask(cmd.Context(), id); err != nil {
				return apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted task #%d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return id, nil
}
