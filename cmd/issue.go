package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mergington/mhs/internal/models"
	"github.com/mergington/mhs/internal/output"
	"github.com/mergington/mhs/internal/store"
)

var (
	issueListCategory string
	issueListStatus   string

	issueCreateTitle       string
	issueCreateDescription string
	issueCreateCategory    string
	issueCreateEmail       string
	issueCreateActivity    string
)

var issueCmd = &cobra.Command{
	Use:     "issue",
	Aliases: []string{"issues"},
	Short:   "Track reported issues",
}

var issueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issues, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun()
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one issue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid issue id: %s", args[0])
		}
		return issueShowRun(id)
	},
}

var issueCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Report a new issue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCreateRun()
	},
}

var issueStatusCmd = &cobra.Command{
	Use:   "status <id> <open|in_progress|resolved>",
	Short: "Update an issue's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid issue id: %s", args[0])
		}
		return issueStatusRun(id, args[1])
	},
}

func init() {
	issueListCmd.Flags().StringVar(&issueListCategory, "category", "", "Filter by category (bug, feature_request, feedback, question)")
	issueListCmd.Flags().StringVar(&issueListStatus, "status", "", "Filter by status (open, in_progress, resolved)")

	issueCreateCmd.Flags().StringVar(&issueCreateTitle, "title", "", "Issue title (required)")
	issueCreateCmd.Flags().StringVar(&issueCreateDescription, "description", "", "Issue description")
	issueCreateCmd.Flags().StringVar(&issueCreateCategory, "category", "", "Category: bug, feature_request, feedback, question (required)")
	issueCreateCmd.Flags().StringVar(&issueCreateEmail, "email", "", "Reporter's school email (required)")
	issueCreateCmd.Flags().StringVar(&issueCreateActivity, "activity", "", "Related activity name")
	_ = issueCreateCmd.MarkFlagRequired("title")
	_ = issueCreateCmd.MarkFlagRequired("category")
	_ = issueCreateCmd.MarkFlagRequired("email")

	issueCmd.AddCommand(issueListCmd)
	issueCmd.AddCommand(issueShowCmd)
	issueCmd.AddCommand(issueCreateCmd)
	issueCmd.AddCommand(issueStatusCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.IssueListFilter{
		Category: models.IssueCategory(issueListCategory),
		Status:   models.IssueStatus(issueListStatus),
	}
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return fmt.Errorf("invalid category: %s", issueListCategory)
	}
	if filter.Status != "" && !models.ValidStatus(filter.Status) {
		return fmt.Errorf("invalid status: %s", issueListStatus)
	}

	issues, err := s.ListIssues(context.Background(), filter)
	if err != nil {
		return err
	}

	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Category", "Status", "Activity", "Reporter"})
	for _, i := range issues {
		table.Append([]string{
			fmt.Sprintf("#%d", i.ID),
			i.Title,
			output.CategoryColor(string(i.Category)),
			output.StatusColor(string(i.Status)),
			i.RelatedActivity,
			i.ReporterEmail,
		})
	}

	table.Render()
	return nil
}

func issueShowRun(id int64) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	i, err := s.GetIssue(context.Background(), id)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan(fmt.Sprintf("#%d", i.ID)), i.Title)
	fmt.Fprintf(ui.Out, "  Category: %s\n", output.CategoryColor(string(i.Category)))
	fmt.Fprintf(ui.Out, "  Status:   %s\n", output.StatusColor(string(i.Status)))
	if i.RelatedActivity != "" {
		fmt.Fprintf(ui.Out, "  Activity: %s\n", i.RelatedActivity)
	}
	fmt.Fprintf(ui.Out, "  Reporter: %s\n", i.ReporterEmail)
	fmt.Fprintf(ui.Out, "  Created:  %s\n", i.CreatedAt.Format("2006-01-02 15:04"))
	if i.Description != "" {
		fmt.Fprintf(ui.Out, "\n  %s\n", i.Description)
	}
	return nil
}

func issueCreateRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	category := models.IssueCategory(issueCreateCategory)
	if !models.ValidCategory(category) {
		return fmt.Errorf("invalid category: %s", issueCreateCategory)
	}

	if issueCreateActivity != "" {
		if _, err := s.GetActivity(ctx, issueCreateActivity); err != nil {
			return fmt.Errorf("related activity not found: %s", issueCreateActivity)
		}
	}

	issue := &models.Issue{
		Title:           issueCreateTitle,
		Description:     issueCreateDescription,
		Category:        category,
		RelatedActivity: issueCreateActivity,
		ReporterEmail:   issueCreateEmail,
		Status:          models.IssueStatusOpen,
	}
	if err := s.CreateIssue(ctx, issue); err != nil {
		return err
	}

	ui.Success("Created issue #%d: %s", issue.ID, issue.Title)
	return nil
}

func issueStatusRun(id int64, status string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	newStatus := models.IssueStatus(status)
	if !models.ValidStatus(newStatus) {
		return fmt.Errorf("invalid status: %s (valid: open, in_progress, resolved)", status)
	}

	i, err := s.UpdateIssueStatus(context.Background(), id, newStatus)
	if err != nil {
		return err
	}

	ui.Success("Issue #%d is now %s", i.ID, output.StatusColor(string(i.Status)))
	return nil
}
