//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Convert builds the CLI and converts every PDF under samples/ into output/xml.
func Convert() error {
	mg.Deps(Build, Init)

	files, err := filepath.Glob(filepath.Join("samples", "*.pdf"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("[convert] No PDFs in samples/.")
		return nil
	}
	args := append([]string{"convert", "--out-dir", "output/xml"}, files...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Serve builds the CLI and runs the conversion service with the local config.
func Serve() error {
	mg.Deps(Build, Init)
	return sh.RunV(filepath.Join(binDir, binName), "serve")
}
