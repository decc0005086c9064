package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/applydesk/pkg/content"
	"github.com/nainya/applydesk/pkg/persist"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect saved version histories in the local store",
}

var historyListCmd = &cobra.Command{
	Use:   "list [kind] [id]",
	Short: "List documents with saved history, or the versions of one document",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(deps)
		if err != nil {
			return err
		}
		defer store.Close()
		adapter := persist.NewHistoryAdapter(store, persist.WithLogger(deps.Log.Zerolog()))

		if len(args) < 2 {
			return listDocuments(adapter, args)
		}
		id, err := parseIdentity(args[0], args[1])
		if err != nil {
			return err
		}
		return listVersions(adapter, id)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <kind> <id> [index]",
	Short: "Print a saved version (default: the one at the cursor)",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0], args[1])
		if err != nil {
			return err
		}
		store, err := openStore(deps)
		if err != nil {
			return err
		}
		defer store.Close()

		s := persist.NewHistoryAdapter(store, persist.WithLogger(deps.Log.Zerolog())).Load(id)
		index := s.Cursor()
		if len(args) == 3 {
			if index, err = strconv.Atoi(args[2]); err != nil {
				return fmt.Errorf("invalid index %q", args[2])
			}
		}
		snap, err := s.At(index)
		if err != nil {
			return fmt.Errorf("%s has no version %d", id, index)
		}

		fmt.Println(Info.Render(fmt.Sprintf("%s  #%d  %s  %s", id, index, snap.Label,
			snap.Timestamp.Local().Format("2006-01-02 15:04:05"))))
		fmt.Println(BoxStyle.Render(renderContent(snap.Content)))
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <kind> <id>",
	Short: "Delete the saved history and cached generation of a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0], args[1])
		if err != nil {
			return err
		}
		store, err := openStore(deps)
		if err != nil {
			return err
		}
		defer store.Close()

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ok, _ := pterm.DefaultInteractiveConfirm.Show(fmt.Sprintf("Delete all saved versions of %s?", id))
			if !ok {
				fmt.Println(Yellow.Render("Nothing deleted."))
				return nil
			}
		}

		if err := persist.NewHistoryAdapter(store).Delete(id); err != nil {
			return err
		}
		if err := persist.NewGenerationCache(store, 0, deps.Log.Zerolog()).Clear(id); err != nil {
			return err
		}
		fmt.Println(Green.Render(fmt.Sprintf("Cleared history for %s.", id)))
		return nil
	},
}

func init() {
	historyClearCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyClearCmd)
	rootCmd.AddCommand(historyCmd)
}

func parseIdentity(kind, id string) (persist.Identity, error) {
	k, err := content.ParseKind(kind)
	if err != nil {
		return persist.Identity{}, fmt.Errorf("%w: %q", err, kind)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return persist.Identity{}, fmt.Errorf("document id is required")
	}
	return persist.Identity{Kind: k, ID: id}, nil
}

func listDocuments(adapter *persist.HistoryAdapter, args []string) error {
	var kind content.Kind
	if len(args) == 1 {
		k, err := content.ParseKind(args[0])
		if err != nil {
			return fmt.Errorf("%w: %q", err, args[0])
		}
		kind = k
	}

	data := pterm.TableData{{"Kind", "ID", "Versions", "Cursor", "Last saved"}}
	for _, id := range adapter.List() {
		if kind != "" && id.Kind != kind {
			continue
		}
		s := adapter.Load(id)
		last := "-"
		if snap, ok := s.Current(); ok {
			last = snap.Timestamp.Local().Format("2006-01-02 15:04")
		}
		data = append(data, []string{string(id.Kind), id.ID, strconv.Itoa(s.Len()), strconv.Itoa(s.Cursor()), last})
	}
	if len(data) == 1 {
		fmt.Println(Muted.Render("No saved histories."))
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func listVersions(adapter *persist.HistoryAdapter, id persist.Identity) error {
	s := adapter.Load(id)
	if s.Len() == 0 {
		fmt.Println(Muted.Render(fmt.Sprintf("No saved versions for %s.", id)))
		return nil
	}

	data := pterm.TableData{{"", "#", "Label", "Saved", "ID"}}
	for i, snap := range s.Snapshots() {
		marker := ""
		if i == s.Cursor() {
			marker = "*"
		}
		data = append(data, []string{marker, strconv.Itoa(i), snap.Label,
			snap.Timestamp.Local().Format("2006-01-02 15:04:05"), snap.ID})
	}
	fmt.Println(Info.Render(fmt.Sprintf("%s (%s, %d/%d)", id, s.Position(), s.Len(), s.Max())))
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

// renderContent prints fields in schema order with the body after its anchor
func renderContent(c content.Content) string {
	schema, err := content.SchemaFor(c.Kind)
	if err != nil {
		return c.Text()
	}
	var b strings.Builder
	writeBody := func() {
		for i, p := range c.Body {
			fmt.Fprintf(&b, "%s %d:\n%s\n\n", schema.BodyLabel, i+1, p)
		}
	}
	for _, name := range schema.Fields {
		if v := c.Field(name); v != "" {
			fmt.Fprintf(&b, "%s:\n%s\n\n", name, v)
		}
		if name == schema.BodyAfter {
			writeBody()
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
