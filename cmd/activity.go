package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mergington/mhs/internal/output"
)

var activityCmd = &cobra.Command{
	Use:     "activity",
	Aliases: []string{"activities"},
	Short:   "Browse activities and sign students up",
}

var activityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return activityListRun()
	},
}

var activityShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one activity with its roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return activityShowRun(args[0])
	},
}

var activitySignupCmd = &cobra.Command{
	Use:   "signup <name> <email>",
	Short: "Sign a student up for an activity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return activitySignupRun(args[0], args[1])
	},
}

func init() {
	activityCmd.AddCommand(activityListCmd)
	activityCmd.AddCommand(activityShowCmd)
	activityCmd.AddCommand(activitySignupCmd)
	rootCmd.AddCommand(activityCmd)
}

func activityListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	activities, err := s.ListActivities(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(activities))
	for name := range activities {
		names = append(names, name)
	}
	sort.Strings(names)

	table := ui.Table([]string{"Activity", "Schedule", "Slots", "Open"})
	for _, name := range names {
		a := activities[name]
		table.Append([]string{
			output.Cyan(a.Name),
			a.Schedule,
			output.FillColor(len(a.Participants), a.MaxParticipants),
			strconv.Itoa(a.SpotsLeft()),
		})
	}

	table.Render()
	return nil
}

func activityShowRun(name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	a, err := s.GetActivity(context.Background(), name)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(a.Name))
	fmt.Fprintf(ui.Out, "  %s\n", a.Description)
	fmt.Fprintf(ui.Out, "  Schedule: %s\n", a.Schedule)
	fmt.Fprintf(ui.Out, "  Slots:    %s (%d open)\n",
		output.FillColor(len(a.Participants), a.MaxParticipants), a.SpotsLeft())

	if len(a.Participants) > 0 {
		fmt.Fprintln(ui.Out, "  Participants:")
		for _, p := range a.Participants {
			fmt.Fprintf(ui.Out, "    - %s\n", p)
		}
	}
	return nil
}

func activitySignupRun(name, email string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if err := s.SignUp(context.Background(), name, email); err != nil {
		return err
	}

	ui.Success("Signed up %s for %s", email, name)
	return nil
}
