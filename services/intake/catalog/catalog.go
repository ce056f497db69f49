// Copyright (C) 2025 Stillpoint Labs (eng@stillpoint.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package catalog holds the immutable intake definitions.
//
// Definitions are deploy-time data authored in YAML, embedded into the
// binary, and parsed once at startup. The catalog is read-only after Load:
// lookups have no side effects and no failure modes beyond "not found" and
// "out of range", both of which are caller errors.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stillpoint/intake/services/intake/datatypes"
)

//go:embed definitions/*.yaml
var embeddedDefinitions embed.FS

// Catalog is the loaded, immutable set of intake definitions.
type Catalog struct {
	definitions map[string]*datatypes.IntakeDefinition
}

// Load parses the embedded definition files. Called once at startup;
// a malformed embedded definition is a build defect, so errors here are
// fatal for the process.
func Load() (*Catalog, error) {
	return loadFS(embeddedDefinitions, "definitions")
}

// LoadDir parses definition files from a directory on disk. Used by the
// catalog lint CLI against not-yet-deployed definitions.
func LoadDir(dir string) (*Catalog, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, root string) (*Catalog, error) {
	cat := &Catalog{definitions: make(map[string]*datatypes.IntakeDefinition)}

	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading definitions dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var def datatypes.IntakeDefinition
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		if err := validateDefinition(&def); err != nil {
			return nil, fmt.Errorf("invalid definition %s: %w", entry.Name(), err)
		}
		if _, exists := cat.definitions[def.Type]; exists {
			return nil, fmt.Errorf("duplicate intake type %q in %s", def.Type, entry.Name())
		}
		cat.definitions[def.Type] = &def
	}
	if len(cat.definitions) == 0 {
		return nil, fmt.Errorf("no intake definitions found")
	}
	return cat, nil
}

// Get returns the definition for an intake type.
func (c *Catalog) Get(intakeType string) (*datatypes.IntakeDefinition, error) {
	def, ok := c.definitions[intakeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", datatypes.ErrUnknownIntake, intakeType)
	}
	return def, nil
}

// QuestionAt returns the question at a step index.
func (c *Catalog) QuestionAt(intakeType string, index int) (*datatypes.QuestionDefinition, error) {
	def, err := c.Get(intakeType)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(def.Questions) {
		return nil, fmt.Errorf("%w: %d (intake %q has %d steps)",
			datatypes.ErrInvalidStep, index, intakeType, len(def.Questions))
	}
	return &def.Questions[index], nil
}

// TotalSteps returns the number of questions in an intake type.
func (c *Catalog) TotalSteps(intakeType string) (int, error) {
	def, err := c.Get(intakeType)
	if err != nil {
		return 0, err
	}
	return def.TotalSteps(), nil
}

// Types lists the loaded intake types.
func (c *Catalog) Types() []string {
	out := make([]string, 0, len(c.definitions))
	for t := range c.definitions {
		out = append(out, t)
	}
	return out
}
