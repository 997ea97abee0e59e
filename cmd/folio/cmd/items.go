package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/folio/items"
	"github.com/jmcleod/folio/items/remote"
)

// column renders one field of an item in list output.
type column struct {
	header string
	value  func(items.Item) string
}

func fieldColumn(header, key string) column {
	return column{header: header, value: func(it items.Item) string { return it.Field(key) }}
}

// location tells whether an item is waiting in the local store for
// migration or already lives on the server.
func location(it items.Item) string {
	if items.IsLocalID(it.ID) {
		return "local"
	}
	return "server"
}

func listCollection(cmd *cobra.Command, collection string, cols ...column) error {
	c, err := authorized()
	if err != nil {
		return err
	}
	defer c.Close()
	svc, err := c.Collection(collection)
	if err != nil {
		return err
	}

	list, err := svc.List(cmd.Context())
	if err != nil {
		return err
	}
	slices.SortStableFunc(list, func(a, b items.Item) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for i := range list {
		list[i].Content = nil
	}

	w := cmd.OutOrStdout()
	if ok, err := outputJSON(w, list); ok {
		return err
	}
	writeTable(w, list, cols)
	return nil
}

func writeTable(w io.Writer, list []items.Item, cols []column) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := []string{"ID"}
	for _, col := range cols {
		headers = append(headers, col.header)
	}
	headers = append(headers, "UPDATED", "WHERE")
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, it := range list {
		row := []string{it.ID}
		for _, col := range cols {
			row = append(row, col.value(it))
		}
		row = append(row, it.UpdatedAt.Local().Format(time.DateTime), location(it))
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// printItem reports a created or updated item.
func printItem(cmd *cobra.Command, verb string, it items.Item) error {
	w := cmd.OutOrStdout()
	it.Content = nil
	if ok, err := outputJSON(w, it); ok {
		return err
	}
	if items.IsLocalID(it.ID) {
		fmt.Fprintf(w, "%s %s (saved locally, server unreachable)\n", verb, it.ID)
		return nil
	}
	fmt.Fprintf(w, "%s %s\n", verb, it.ID)
	return nil
}

// findItem looks id up where it lives: items with a local id are only in
// the local store, everything else is listed through the service.
func findItem(ctx context.Context, svc *items.Fallback, id string) (items.Item, error) {
	var (
		list []items.Item
		err  error
	)
	if items.IsLocalID(id) {
		list, err = svc.Local().List(ctx)
	} else {
		list, err = svc.List(ctx)
	}
	if err != nil {
		return items.Item{}, err
	}
	for _, it := range list {
		if it.ID == id {
			return it, nil
		}
	}
	return items.Item{}, fmt.Errorf("%s: %w", id, items.ErrNotFound)
}

// editItem loads id, lets edit change its fields and stores the result.
func editItem(cmd *cobra.Command, collection, id string, edit func(*items.Item) error) error {
	c, err := authorized()
	if err != nil {
		return err
	}
	defer c.Close()
	svc, err := c.Collection(collection)
	if err != nil {
		return err
	}

	it, err := findItem(cmd.Context(), svc, id)
	if err != nil {
		return err
	}
	it = it.Clone()
	it.Content = nil
	if it.Fields == nil {
		it.Fields = map[string]string{}
	}
	if err := edit(&it); err != nil {
		return err
	}
	updated, err := svc.Update(cmd.Context(), it)
	if err != nil {
		return missing(collection, id, err)
	}
	return printItem(cmd, "Updated", updated)
}

func createItem(cmd *cobra.Command, collection string, it items.Item) error {
	c, err := authorized()
	if err != nil {
		return err
	}
	defer c.Close()
	svc, err := c.Collection(collection)
	if err != nil {
		return err
	}
	created, err := svc.Create(cmd.Context(), it)
	if err != nil {
		return err
	}
	return printItem(cmd, "Created", created)
}

func removeItem(cmd *cobra.Command, collection, id string) error {
	c, err := authorized()
	if err != nil {
		return err
	}
	defer c.Close()
	svc, err := c.Collection(collection)
	if err != nil {
		return err
	}
	if items.IsLocalID(id) {
		err = svc.Local().Delete(cmd.Context(), id)
	} else {
		err = svc.Delete(cmd.Context(), id)
	}
	if err != nil {
		return missing(collection, id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	return nil
}

// missing reports a plain not-found when the server answered 404 for id.
// The device copy being absent as well is expected then, so the fallback's
// "storage unavailable" would only mislead.
func missing(collection, id string, err error) error {
	var se *remote.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", collection, id, items.ErrNotFound)
	}
	return err
}

func migrateCollection(cmd *cobra.Command, collection string) error {
	c, err := authorized()
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Migrate(cmd.Context(), collection)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	ok, err := outputJSON(w, report)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(w, "Migrated %d %s to the server\n", report.Migrated, collection)
		for _, msg := range report.Errors {
			fmt.Fprintf(w, "  error: %s\n", msg)
		}
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d item(s) not migrated", report.Failed())
	}
	return nil
}

// migrateCmd builds the "migrate" subcommand of a collection.
func migrateCmd(collection string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: fmt.Sprintf("Move %s saved offline to the server", collection),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateCollection(cmd, collection)
		},
	}
}

func rmCmd(collection string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   fmt.Sprintf("Delete one of the %s", collection),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return removeItem(cmd, collection, args[0])
		},
	}
}

var errNothingToChange = errors.New("nothing to change; pass at least one flag")
