package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/alwatan/noura/internal/observability"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report configuration and dependency readiness",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	status := observability.CheckDependencies(cmd.Context(), a.readinessChecks())

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bannerStyle.Render(fmt.Sprintf("%s %s: %s", status.Service, status.Version, status.Status)))

	names := make([]string, 0, len(status.Dependencies))
	for name := range status.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		dep := status.Dependencies[name]
		line := fmt.Sprintf("  %-10s %s", name, dep.Status)
		if dep.Message != "" {
			line += "  " + dep.Message
		}
		switch dep.Status {
		case "unhealthy":
			fmt.Fprintln(out, errorStyle.Render(line))
		case "disabled":
			fmt.Fprintln(out, statusStyle.Render(line))
		default:
			fmt.Fprintln(out, assistantStyle.Render(line))
		}
	}

	if status.Status != "ready" {
		return errors.New("not ready")
	}
	return nil
}
