package cmd

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/items"
)

const (
	todoText      = "text"
	todoCompleted = "completed"
	todoPriority  = "priority"
)

var priorities = []string{"low", "medium", "high"}

var (
	todoPriorityFlag string
	todoUndo         bool
)

var todosCmd = &cobra.Command{
	Use:   "todos",
	Short: "Manage todos",
}

var todosListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List todos",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		done := column{header: "DONE", value: func(it items.Item) string {
			if completed, _ := strconv.ParseBool(it.Field(todoCompleted)); completed {
				return "x"
			}
			return ""
		}}
		return listCollection(cmd, client.Todos,
			fieldColumn("TEXT", todoText), done, fieldColumn("PRIORITY", todoPriority))
	},
}

var todosAddCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Add a todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains(priorities, todoPriorityFlag) {
			return fmt.Errorf("priority must be one of %v", priorities)
		}
		return createItem(cmd, client.Todos, items.Item{Fields: map[string]string{
			todoText:      args[0],
			todoCompleted: "false",
			todoPriority:  todoPriorityFlag,
		}})
	},
}

var todosDoneCmd = &cobra.Command{
	Use:   "done ID",
	Short: "Mark a todo completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editItem(cmd, client.Todos, args[0], func(it *items.Item) error {
			it.Fields[todoCompleted] = strconv.FormatBool(!todoUndo)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(todosCmd)
	todosCmd.AddCommand(todosListCmd, todosAddCmd, todosDoneCmd, rmCmd(client.Todos), migrateCmd(client.Todos))
	todosAddCmd.Flags().StringVar(&todoPriorityFlag, "priority", "medium", "Priority: low, medium or high")
	todosDoneCmd.Flags().BoolVar(&todoUndo, "undo", false, "Mark the todo open again")
}
