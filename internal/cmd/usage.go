package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/yusheng929/steam-plugin/internal/config"
	"github.com/yusheng929/steam-plugin/internal/models"
)

var usageJSON bool

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's per-key usage and block state",
	Args:  cobra.NoArgs,
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "print the report as JSON")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := cliLogger(false)
	if err != nil {
		return err
	}
	defer log.Sync()

	client, release, err := newClient(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer release()

	report, err := client.Report(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}

	if usageJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, r *models.UsageReport) error {
	keys := table.NewWriter()
	keys.SetStyle(table.StyleRounded)
	keys.SetTitle("Day " + r.Day)
	keys.AppendHeader(table.Row{"#", "Key", "Today", "Status"})

	var total int64
	for _, k := range r.Keys {
		status := "ok"
		if k.Blocked {
			status = "blocked"
		}
		total += k.TodayUsage
		keys.AppendRow(table.Row{k.Position, k.Key, k.TodayUsage, status})
	}
	keys.AppendFooter(table.Row{"", "total", total, ""})

	out := keys.Render() + "\n"

	if len(r.Requests) > 0 {
		paths := make([]string, 0, len(r.Requests))
		for p := range r.Requests {
			paths = append(paths, p)
		}
		slices.Sort(paths)

		reqs := table.NewWriter()
		reqs.SetStyle(table.StyleRounded)
		reqs.AppendHeader(table.Row{"Path", "Requests"})
		for _, p := range paths {
			reqs.AppendRow(table.Row{p, r.Requests[p]})
		}
		out += reqs.Render() + "\n"
	}

	_, err := io.WriteString(w, out)
	return err
}
