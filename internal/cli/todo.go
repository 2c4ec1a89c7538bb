package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rtodo/rtodo/internal/app"
	"github.com/rtodo/rtodo/pkg/types"
)

var (
	doneTitleStyle = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	markStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#E6A23C"))
)

func newTodoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "todo",
		Short: "Manage todos",
	}
	cmd.AddCommand(
		newTodoAddCmd(),
		newTodoListCmd(),
		newTodoShowCmd(),
		newTodoStatusCmd(),
		newTodoRmCmd(),
		newTodoStatsCmd(),
	)
	return cmd
}

func newTodoAddCmd() *cobra.Command {
	var (
		desc     string
		groupID  int64
		tagIDs   []int64
		due      string
		priority int
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := types.NewTodo{Title: args[0], Priority: priority, TagIDs: tagIDs}
			if desc != "" {
				n.Description = &desc
			}
			if groupID != 0 {
				n.GroupID = &groupID
			}
			if due != "" {
				ms, err := parseDate(due)
				if err != nil {
					return err
				}
				n.DueDate = &ms
			}

			return withApp(cmd, func(a *app.App) error {
				todo, err := a.Store().Todos().Create(cmd.Context(), n)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), todo)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created todo %d\n", todo.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&desc, "description", "d", "", "description")
	cmd.Flags().Int64VarP(&groupID, "group", "g", 0, "group id")
	cmd.Flags().Int64SliceVarP(&tagIDs, "tag", "t", nil, "tag id (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "priority; 1 or more marks the todo important")
	return cmd
}

func newTodoListCmd() *cobra.Command {
	var (
		groupID int64
		tagID   int64
		status  string
		search  string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := types.TodoFilter{Search: search}
			if groupID != 0 {
				f.GroupID = &groupID
			}
			if tagID != 0 {
				f.TagID = &tagID
			}
			if status != "" {
				st, err := types.ParseStatus(status)
				if err != nil {
					return userError(err)
				}
				f.Status = &st
			}

			return withApp(cmd, func(a *app.App) error {
				todos, err := a.Store().Todos().List(cmd.Context(), f)
				if err != nil {
					return err
				}
				if flags.jsonMode {
					if todos == nil {
						todos = []types.Todo{}
					}
					return printJSON(cmd.OutOrStdout(), todos)
				}
				if len(todos) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No todos")
					return nil
				}
				for i := range todos {
					printTodoLine(cmd.OutOrStdout(), &todos[i])
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&groupID, "group", "g", 0, "only todos in this group")
	cmd.Flags().Int64VarP(&tagID, "tag", "t", 0, "only todos with this tag")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only todos with this status (todo, in_progress, done)")
	cmd.Flags().StringVar(&search, "search", "", "match title or description")
	return cmd
}

func printTodoLine(w io.Writer, t *types.Todo) {
	title := t.Title
	if t.Status == types.StatusDone {
		title = doneTitleStyle.Render(title)
	}
	mark := " "
	if t.Marked() {
		mark = markStyle.Render("!")
	}
	var tags []string
	for _, tag := range t.Tags {
		tags = append(tags, lipgloss.NewStyle().Foreground(lipgloss.Color(tag.Color)).Render("#"+tag.Name))
	}
	line := fmt.Sprintf("%4d %s [%-11s] %s", t.ID, mark, t.Status, title)
	if t.DueDate != nil {
		line += "  due " + formatDate(*t.DueDate)
	}
	if len(tags) > 0 {
		line += "  " + strings.Join(tags, " ")
	}
	fmt.Fprintln(w, line)
}

func newTodoShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a todo with its steps and attachments",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				todo, err := a.Store().Todos().Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if flags.jsonMode {
					return printJSON(out, todo)
				}
				printTodoLine(out, todo)
				if todo.Description != nil {
					fmt.Fprintf(out, "     %s\n", *todo.Description)
				}
				for _, s := range todo.Steps {
					box := "[ ]"
					if s.IsCompleted {
						box = "[x]"
					}
					fmt.Fprintf(out, "     %s %d %s\n", box, s.ID, s.Title)
				}
				for _, att := range todo.Attachments {
					fmt.Fprintf(out, "     @ %d %s (%d bytes)\n", att.ID, att.Name, att.FileSize)
				}
				return nil
			})
		},
	}
}

func newTodoStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <todo|in_progress|done>",
		Short: "Change a todo's status",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			st, err := types.ParseStatus(args[1])
			if err != nil {
				return userError(err)
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.Store().Todos().UpdateStatus(cmd.Context(), id, st); err != nil {
					return err
				}
				if flags.jsonMode {
					todo, err := a.Store().Todos().Get(cmd.Context(), id)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), todo)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Todo %d is now %s\n", id, st)
				return nil
			})
		},
	}
}

func newTodoRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a todo with its steps and attachments",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				if err := a.DeleteTodo(cmd.Context(), id); err != nil {
					return err
				}
				if !flags.jsonMode {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted todo %d\n", id)
				}
				return nil
			})
		},
	}
}

func newTodoStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count todos by status",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				st, err := a.Store().Stats(cmd.Context())
				if err != nil {
					return err
				}
				if flags.jsonMode {
					return printJSON(cmd.OutOrStdout(), st)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "total %d  todo %d  in_progress %d  done %d  overdue %d\n",
					st.Total, st.Todo, st.InProgress, st.Done, st.Overdue)
				return nil
			})
		},
	}
}
