// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docxml/internal/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect conversion job records (get, list, export)",
	Long: `Jobs reads the SQLite job database written by "docxml serve". Use
subcommands to show one job, list an owner's history, or export all records.`,
}

// --- get subcommand ---

var jobsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one job record",
	Long: `Get prints the job record as YAML. With --output it prints only the
XML document of a completed job.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobsGet,
}

func runJobsGet(cmd *cobra.Command, args []string) error {
	store, err := jobs.NewSQLiteStore(loadConfig().Store)
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := store.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("job %s: %w", args[0], err)
	}

	outputOnly, _ := cmd.Flags().GetBool("output")
	if outputOnly {
		if job.Output == "" {
			return fmt.Errorf("job %s is %s, no output", job.ID, job.Status)
		}
		_, err := io.WriteString(os.Stdout, job.Output+"\n")
		return err
	}

	data, err := yaml.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// --- list subcommand ---

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's jobs, newest first",
	RunE:  runJobsList,
}

func runJobsList(cmd *cobra.Command, args []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	limit, _ := cmd.Flags().GetInt("limit")
	if owner == "" {
		return fmt.Errorf("--owner is required")
	}

	store, err := jobs.NewSQLiteStore(loadConfig().Store)
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.ListByOwner(context.Background(), owner, limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-9s  %-20s  %-30s  %s\n",
		"ID", "Status", "Created", "Name", "Error")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, j := range list {
		name := j.OriginalName
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-9s  %-20s  %-30s  %s\n",
			j.ID, j.Status, j.CreatedAt.Format("2006-01-02 15:04:05"), name, j.Error)
	}
	return nil
}

// --- export subcommand ---

var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all job records as YAML or JSON",
	Long: `Export writes every job record to stdout, or to --file. The XML output
itself is omitted; each entry reports its size in bytes.`,
	RunE: runJobsExport,
}

func runJobsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	path, _ := cmd.Flags().GetString("file")

	var export func(context.Context, jobs.Store, io.Writer) error
	switch format {
	case "yaml":
		export = jobs.ExportYAML
	case "json":
		export = jobs.ExportJSON
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	store, err := jobs.NewSQLiteStore(loadConfig().Store)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}

	if err := export(context.Background(), store, w); err != nil {
		return err
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "exported jobs to %s\n", path)
	}
	return nil
}

func init() {
	jobsGetCmd.Flags().Bool("output", false, "print only the XML output")

	jobsListCmd.Flags().String("owner", "", "owner ID (required)")
	jobsListCmd.Flags().Int("limit", jobs.DefaultHistoryLimit, "maximum number of jobs")

	jobsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	jobsExportCmd.Flags().String("file", "", "write to file instead of stdout")

	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	rootCmd.AddCommand(jobsCmd)
}
