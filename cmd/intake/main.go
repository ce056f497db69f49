// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command intake is the deploy-time companion CLI for the intake service.
//
// Intake definitions are data, authored in YAML and embedded into the
// service at build time. The validate command runs the same load-time
// checks the service runs, so a broken definition fails in CI instead of
// in a user's session.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stillpoint/intake/services/intake/catalog"
	"github.com/stillpoint/intake/services/intake/datatypes"
)

var (
	rootCmd = &cobra.Command{
		Use:   "intake",
		Short: "Tools for working with Stillpoint intake definitions",
	}
	validateCmd = &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validates intake definition YAML files in a directory",
		Long: `Loads every *.yaml definition in the directory and runs the same
structural checks the service applies at startup: duplicate ids, templates
referencing unknown option values, skip flags on open-text questions, and
early-start indexes out of range.`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
	showCmd = &cobra.Command{
		Use:   "show [dir] [type]",
		Short: "Prints the public (stripped) view of a definition as JSON",
		Long: `Prints exactly what a caller of the definition endpoint would see.
Useful for confirming that internal annotations do not leak.`,
		Args: cobra.ExactArgs(2),
		RunE: runShow,
	}
)

func runValidate(cmd *cobra.Command, args []string) error {
	cat, err := catalog.LoadDir(args[0])
	if err != nil {
		return err
	}
	for _, t := range cat.Types() {
		steps, _ := cat.TotalSteps(t)
		fmt.Printf("ok: %s (%d steps)\n", t, steps)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cat, err := catalog.LoadDir(args[0])
	if err != nil {
		return err
	}
	def, err := cat.Get(args[1])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(datatypes.PublicDefinitionView(def), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(showCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
