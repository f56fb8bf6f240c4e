package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vyrodovalexey/tasklist/internal/model"
)

func newLsCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "Print the list in display order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			items := e.Snapshot()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			printItems(cmd.OutOrStdout(), items)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print items as JSON")

	return cmd
}

func newAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add NAME...",
		Short: "Append an item to the list",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}

			created, err := e.AddItem(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if created == nil {
				return fmt.Errorf("item name must not be blank")
			}

			fmt.Fprintln(cmd.OutOrStdout(), created.ID)
			return nil
		},
	}
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "done ID",
		Aliases: []string{"toggle"},
		Short:   "Flip the complete flag of an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := requireItem(e, args[0]); err != nil {
				return err
			}
			return e.ToggleComplete(cmd.Context(), args[0])
		},
	}
}

func newRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME...",
		Short: "Rename an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			return e.RenameItem(cmd.Context(), args[0], strings.Join(args[1:], " "))
		},
	}
}

func newRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"delete"},
		Short:   "Delete an item and close the gap it leaves",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			if err := requireItem(e, args[0]); err != nil {
				return err
			}
			return e.DeleteItem(cmd.Context(), args[0])
		},
	}
}

func newMvCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv ID POSITION",
		Short: "Move an item to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.Atoi(args[1])
			if err != nil || pos < 1 {
				return fmt.Errorf("position must be a positive number, got %q", args[1])
			}

			e, err := app.loadedEngine(cmd.Context())
			if err != nil {
				return err
			}
			return e.Reorder(cmd.Context(), args[0], pos-1)
		},
	}
}

func printItems(w io.Writer, items []model.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no items")
		return
	}
	for i, it := range items {
		box := "[ ]"
		if it.Complete {
			box = "[x]"
		}
		fmt.Fprintf(w, "%s %2d. %s  (%s)\n", box, i+1, it.Name, it.ID)
	}
}
