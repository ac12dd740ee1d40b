// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"
)

// SaveConfig writes the commented config file for the flags bound on cmd.
// Flags annotated as setup-only (config-dir itself, defaults) are skipped.
func SaveConfig(cmd *cobra.Command, outfile string) error {
	flags := cmd.Flags()

	type entry struct {
		name  string
		usage string
		value interface{}
	}
	var entries []entry

	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" {
			return
		}
		if f.Annotations["setup"] != nil {
			return
		}
		entries = append(entries, entry{
			name:  f.Name,
			usage: f.Usage,
			value: flagValue(f),
		})
	})
	sort.Slice(entries, func(i, k int) bool { return entries[i].name < entries[k].name })

	var buf bytes.Buffer
	for _, e := range entries {
		line, err := yaml.Marshal(map[string]interface{}{e.name: e.value})
		if err != nil {
			return errs.Wrap(err)
		}
		fmt.Fprintf(&buf, "# %s\n", e.usage)
		buf.Write(line)
		buf.WriteString("\n")
	}

	return errs.Wrap(os.WriteFile(outfile, buf.Bytes(), 0600))
}

// flagValue converts a flag's string form back into a natively typed value
// so the generated yaml keeps booleans and numbers unquoted.
func flagValue(f *pflag.Flag) interface{} {
	text := f.Value.String()
	switch f.Value.Type() {
	case "bool":
		v, err := strconv.ParseBool(text)
		if err == nil {
			return v
		}
	case "int", "int64":
		v, err := strconv.ParseInt(text, 10, 64)
		if err == nil {
			return v
		}
	case "uint64":
		v, err := strconv.ParseUint(text, 10, 64)
		if err == nil {
			return v
		}
	case "float64":
		v, err := strconv.ParseFloat(text, 64)
		if err == nil {
			return v
		}
	}
	return text
}
