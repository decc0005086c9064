package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nainya/applydesk/pkg/backend"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage automation rules on the backend",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List automation rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newBackend(deps, nil)
		var rules []backend.Rule
		err := withSpinner("Fetching rules...", func(ctx context.Context) (err error) {
			rules, err = client.ListRules(ctx)
			return err
		})
		if err != nil {
			return describe(err)
		}
		if len(rules) == 0 {
			fmt.Println(Muted.Render("No automation rules."))
			return nil
		}

		data := pterm.TableData{{"ID", "Name", "Active", "Schedule"}}
		for _, r := range rules {
			active := Red.Render("no")
			if r.IsActive {
				active = Green.Render("yes")
			}
			data = append(data, []string{strconv.Itoa(r.ID), r.Name, active, r.Schedule})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an automation rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "rule")
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			ok, _ := pterm.DefaultInteractiveConfirm.Show(fmt.Sprintf("Delete rule %d?", id))
			if !ok {
				fmt.Println(Yellow.Render("Rule kept."))
				return nil
			}
		}

		client := newBackend(deps, nil)
		err = withSpinner("Deleting rule...", func(ctx context.Context) error {
			return client.DeleteRule(ctx, id)
		})
		if err != nil {
			return describe(err)
		}
		fmt.Println(Green.Render(fmt.Sprintf("Deleted rule %d.", id)))
		return nil
	},
}

var packagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "Work with generated application packages",
}

var packagesRegenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Rebuild an application package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "package")
		if err != nil {
			return err
		}
		client := newBackend(deps, nil)
		err = withSpinner("Regenerating package...", func(ctx context.Context) error {
			return client.RegeneratePackage(ctx, id)
		})
		if err != nil {
			return describe(err)
		}
		fmt.Println(Green.Render(fmt.Sprintf("Package %d queued for regeneration.", id)))
		return nil
	},
}

var packagesDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Download an application package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "package")
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("output")

		client := newBackend(deps, nil)
		var pkg *backend.Package
		err = withSpinner("Downloading package...", func(ctx context.Context) (err error) {
			pkg, err = client.DownloadPackage(ctx, id)
			return err
		})
		if err != nil {
			return describe(err)
		}

		path := filepath.Join(dir, filepath.Base(pkg.Filename))
		if err := os.WriteFile(path, pkg.Data, 0o644); err != nil {
			return fmt.Errorf("save package: %w", err)
		}
		fmt.Println(Green.Render(fmt.Sprintf("Saved %s (%d bytes).", path, len(pkg.Data))))
		return nil
	},
}

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Control scheduled submissions",
}

func submissionCommand(use, short, verb string, run func(*backend.Client, context.Context, int) (*backend.SubmissionStatus, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "submission")
			if err != nil {
				return err
			}
			client := newBackend(deps, nil)
			var st *backend.SubmissionStatus
			err = withSpinner(verb+" submission...", func(ctx context.Context) (err error) {
				st, err = run(client, ctx, id)
				return err
			})
			if err != nil {
				return describe(err)
			}
			msg := fmt.Sprintf("Submission %d: %s", st.ID, st.Status)
			if st.Message != "" {
				msg += " (" + st.Message + ")"
			}
			fmt.Println(Green.Render(msg))
			return nil
		},
	}
}

func init() {
	rulesDeleteCmd.Flags().BoolP("force", "f", false, "Delete without confirmation")
	rulesCmd.AddCommand(rulesListCmd, rulesDeleteCmd)

	packagesDownloadCmd.Flags().StringP("output", "o", ".", "Directory to save the package in")
	packagesCmd.AddCommand(packagesRegenerateCmd, packagesDownloadCmd)

	submissionsCmd.AddCommand(
		submissionCommand("cancel", "Cancel a scheduled submission", "Cancelling", (*backend.Client).CancelSubmission),
		submissionCommand("execute", "Run a scheduled submission now", "Executing", (*backend.Client).ExecuteSubmission),
	)

	rootCmd.AddCommand(rulesCmd, packagesCmd, submissionsCmd)
}
