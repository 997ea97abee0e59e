package cmd

import (
	"bytes"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/client"
	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/items/remote"
)

var (
	fileCategory string
	fileName     string
	fileOutput   string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage uploaded files",
}

var filesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List files",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCollection(cmd, client.Files,
			fieldColumn("NAME", remote.FieldName),
			fieldColumn("CATEGORY", remote.FieldCategory),
			fieldColumn("TYPE", remote.FieldContentType),
			fieldColumn("SIZE", remote.FieldSize))
	},
}

var filesUploadCmd = &cobra.Command{
	Use:   "upload PATH",
	Short: "Upload a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		name := fileName
		if name == "" {
			name = filepath.Base(args[0])
		}
		return createItem(cmd, client.Files, items.Item{
			Fields: map[string]string{
				remote.FieldName:        name,
				remote.FieldCategory:    fileCategory,
				remote.FieldContentType: mime.TypeByExtension(filepath.Ext(name)),
				remote.FieldSize:        strconv.Itoa(len(data)),
			},
			Content: data,
		})
	},
}

var filesEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Rename or recategorise a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		return editItem(cmd, client.Files, args[0], func(it *items.Item) error {
			if !flags.Changed("name") && !flags.Changed("category") {
				return errNothingToChange
			}
			if flags.Changed("name") {
				it.Fields[remote.FieldName], _ = flags.GetString("name")
			}
			if flags.Changed("category") {
				it.Fields[remote.FieldCategory], _ = flags.GetString("category")
			}
			return nil
		})
	},
}

var filesGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Download a file",
	Long: `Downloads a file into the current directory under its stored name, or to
the path given with --output ("-" writes to stdout).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authorized()
		if err != nil {
			return err
		}
		defer c.Close()

		id := args[0]
		var (
			buf  bytes.Buffer
			name string
		)
		if items.IsLocalID(id) {
			svc, err := c.Collection(client.Files)
			if err != nil {
				return err
			}
			it, err := findItem(cmd.Context(), svc, id)
			if err != nil {
				return err
			}
			buf.Write(it.Content)
			name = it.Field(remote.FieldName)
		} else {
			name, err = c.Remote.Files().Download(cmd.Context(), id, &buf)
			if err != nil {
				return err
			}
		}

		if fileOutput == "-" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		dest := fileOutput
		if dest == "" {
			dest = filepath.Base(name)
			if dest == "." || dest == string(filepath.Separator) || dest == "" {
				dest = id
			}
		}
		if err := os.WriteFile(dest, buf.Bytes(), 0o600); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", dest, buf.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd, filesUploadCmd, filesEditCmd, filesGetCmd, rmCmd(client.Files), migrateCmd(client.Files))
	filesUploadCmd.Flags().StringVar(&fileCategory, "category", "", "Category to file the upload under")
	filesUploadCmd.Flags().StringVar(&fileName, "name", "", "Name to store the file under (default: base name of PATH)")
	filesEditCmd.Flags().String("name", "", "New name")
	filesEditCmd.Flags().String("category", "", "New category")
	filesGetCmd.Flags().StringVarP(&fileOutput, "output", "o", "", "Where to write the file")
}
