// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docxml/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert PDF or text files to structured XML",
	Long: `Convert runs each file through extraction, classification, and
serialization synchronously and writes <out-dir>/<name>.xml. Files whose
output already exists are skipped unless --force is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	err := bindFlags(cmd, map[string]string{
		"backend": "extraction.backend",
		"mode":    "classifier.mode",
	})
	if err != nil {
		return err
	}
	cfg := loadConfig()
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	force, _ := cmd.Flags().GetBool("force")

	result := convert.ConvertBatch(cmd.Context(), pipeline, args, convert.BatchOptions{
		OutDir: outDir,
		Force:  force,
	}, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

func init() {
	convertCmd.Flags().String("out-dir", "output/xml", "directory for XML output")
	convertCmd.Flags().Bool("force", false, "overwrite existing XML output")
	convertCmd.Flags().String("backend", "native", "PDF extractor: native, tika, or container")
	convertCmd.Flags().String("mode", "structured", "classifier mode: structured or legacy")

	rootCmd.AddCommand(convertCmd)
}
