package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/items"
)

const (
	noteTitle = "title"
	noteBody  = "body"
)

var noteBodyFlag string

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage notes",
}

var notesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notes",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCollection(cmd, client.Notes, fieldColumn("TITLE", noteTitle))
	},
}

var notesAddCmd = &cobra.Command{
	Use:   "add TITLE",
	Short: "Add a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createItem(cmd, client.Notes, items.Item{Fields: map[string]string{
			noteTitle: args[0],
			noteBody:  noteBodyFlag,
		}})
	},
}

var notesEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change the title or body of a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		return editItem(cmd, client.Notes, args[0], func(it *items.Item) error {
			if !flags.Changed("title") && !flags.Changed("body") {
				return errNothingToChange
			}
			if flags.Changed("title") {
				it.Fields[noteTitle], _ = flags.GetString("title")
			}
			if flags.Changed("body") {
				it.Fields[noteBody], _ = flags.GetString("body")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)
	notesCmd.AddCommand(notesListCmd, notesAddCmd, notesEditCmd, rmCmd(client.Notes), migrateCmd(client.Notes))
	notesAddCmd.Flags().StringVar(&noteBodyFlag, "body", "", "Note body")
	notesEditCmd.Flags().String("title", "", "New title")
	notesEditCmd.Flags().String("body", "", "New body")
}
