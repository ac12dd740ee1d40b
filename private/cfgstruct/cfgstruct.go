// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cfgstruct binds a configuration struct to command line flags using
// struct tags.
//
// Supported tags:
//
//	help:           flag usage string
//	default:        default for all run modes
//	devDefault:     default when the process runs with dev defaults
//	releaseDefault: default when the process runs with release defaults
//	hidden:         when "true", the flag is hidden from usage
//	internal:       when "true", no flag is created for the field
package cfgstruct

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"storj.io/webpods/private/memory"
)

// BindOpt is an option for the Bind method.
type BindOpt func(vars map[string]string, opts *bindOptions)

type bindOptions struct {
	setupMode bool
	useDev    bool
	prefix    string
}

// ConfDir sets the $CONFDIR variable for default substitution.
func ConfDir(path string) BindOpt {
	val := strings.TrimSuffix(path, "/")
	return func(vars map[string]string, opts *bindOptions) {
		vars["CONFDIR"] = val
	}
}

// SetupMode issues the bind in a mode where all flags are annotated as
// setup-time values.
func SetupMode() BindOpt {
	return func(vars map[string]string, opts *bindOptions) {
		opts.setupMode = true
	}
}

// UseDevDefaults forces the bind to use development defaults.
func UseDevDefaults() BindOpt {
	return func(vars map[string]string, opts *bindOptions) {
		opts.useDev = true
	}
}

// Prefix defines the used prefix for the given struct.
func Prefix(prefix string) BindOpt {
	return func(vars map[string]string, opts *bindOptions) {
		opts.prefix = prefix + "."
	}
}

// SetupFlag sets up flags that are needed before `flag.Parse` has been
// called.
func SetupFlag(log *zap.Logger, cmd *cobra.Command, dest *string, name, value, usage string) {
	cmd.PersistentFlags().StringVar(dest, name, value, usage)
	if err := cmd.PersistentFlags().SetAnnotation(name, "setup", []string{"true"}); err != nil {
		log.Error("failed to set up annotation", zap.String("name", name))
	}
}

// DefaultsType returns the type of defaults (dev/release) this binary should
// use, based on the --defaults flag.
func DefaultsType(cmd *cobra.Command) string {
	defaultsFlag := cmd.Flags().Lookup("defaults")
	if defaultsFlag == nil {
		return "dev"
	}
	return strings.ToLower(defaultsFlag.Value.String())
}

// DefaultsFlag sets up the --defaults flag and returns the matching BindOpt.
func DefaultsFlag(cmd *cobra.Command) BindOpt {
	cmd.PersistentFlags().String("defaults", "dev",
		"determines which set of configuration defaults to use. can either be 'dev' or 'release'")
	return func(vars map[string]string, opts *bindOptions) {
		opts.useDev = DefaultsType(cmd) != "release"
	}
}

// Bind sets flags on a FlagSet that match the configuration struct
// 'config'. This works by traversing the config struct using the 'reflect'
// package.
func Bind(flags *pflag.FlagSet, config interface{}, opts ...BindOpt) {
	ptr := reflect.ValueOf(config)
	if ptr.Kind() != reflect.Ptr {
		panic(fmt.Sprintf("invalid config type: %#v. expected pointer to struct", config))
	}

	vars := map[string]string{}
	options := bindOptions{}
	for _, opt := range opts {
		opt(vars, &options)
	}

	bindConfig(flags, options.prefix, ptr.Elem(), vars, options)
}

func bindConfig(flags *pflag.FlagSet, prefix string, val reflect.Value, vars map[string]string, options bindOptions) {
	if val.Kind() != reflect.Struct {
		panic(fmt.Sprintf("invalid config type: %#v. expected struct", val.Interface()))
	}
	typ := val.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldval := val.Field(i)
		flagname := prefix + hyphenate(snakeCase(field.Name))

		if field.Tag.Get("internal") == "true" {
			continue
		}

		switch field.Type.Kind() {
		case reflect.Struct:
			if field.Anonymous {
				bindConfig(flags, prefix, fieldval, vars, options)
			} else {
				bindConfig(flags, flagname+".", fieldval, vars, options)
			}
			continue
		case reflect.Array, reflect.Slice:
			// no flag types for arrays yet
			continue
		}

		help := field.Tag.Get("help")
		def := field.Tag.Get("default")
		if options.useDev {
			if devDef, ok := field.Tag.Lookup("devDefault"); ok {
				def = devDef
			}
		} else {
			if relDef, ok := field.Tag.Lookup("releaseDefault"); ok {
				def = relDef
			}
		}
		def = expand(def, vars)

		fieldaddr := fieldval.Addr().Interface()
		switch field.Type {
		case reflect.TypeOf(time.Duration(0)):
			d, err := time.ParseDuration(defOr(def, "0s"))
			check(flagname, err)
			flags.DurationVar(fieldaddr.(*time.Duration), flagname, d, help)

		case reflect.TypeOf(memory.Size(0)):
			size := fieldaddr.(*memory.Size)
			check(flagname, size.Set(defOr(def, "0")))
			flags.Var(size, flagname, help)

		default:
			switch field.Type.Kind() {
			case reflect.String:
				flags.StringVar(fieldaddr.(*string), flagname, def, help)
			case reflect.Bool:
				b, err := strconv.ParseBool(defOr(def, "false"))
				check(flagname, err)
				flags.BoolVar(fieldaddr.(*bool), flagname, b, help)
			case reflect.Int:
				n, err := strconv.ParseInt(defOr(def, "0"), 10, 64)
				check(flagname, err)
				flags.IntVar(fieldaddr.(*int), flagname, int(n), help)
			case reflect.Int64:
				n, err := strconv.ParseInt(defOr(def, "0"), 10, 64)
				check(flagname, err)
				flags.Int64Var(fieldaddr.(*int64), flagname, n, help)
			case reflect.Uint64:
				n, err := strconv.ParseUint(defOr(def, "0"), 10, 64)
				check(flagname, err)
				flags.Uint64Var(fieldaddr.(*uint64), flagname, n, help)
			case reflect.Float64:
				f, err := strconv.ParseFloat(defOr(def, "0"), 64)
				check(flagname, err)
				flags.Float64Var(fieldaddr.(*float64), flagname, f, help)
			default:
				panic(fmt.Sprintf("invalid field type %s for flag %s", field.Type, flagname))
			}
		}

		if field.Tag.Get("hidden") == "true" {
			check(flagname, flags.MarkHidden(flagname))
		}
		if options.setupMode {
			setFlagAnnotation(flags, flagname, "setup")
		}
		if field.Tag.Get("user") == "true" {
			setFlagAnnotation(flags, flagname, "user")
		}
	}
}

func setFlagAnnotation(flags *pflag.FlagSet, name, annotation string) {
	check(name, flags.SetAnnotation(name, annotation, []string{"true"}))
}

func defOr(def, fallback string) string {
	if def == "" {
		return fallback
	}
	return def
}

func expand(s string, vars map[string]string) string {
	for name, val := range vars {
		s = strings.ReplaceAll(s, "$"+name, val)
	}
	return s
}

func check(flagname string, err error) {
	if err != nil {
		panic(fmt.Sprintf("invalid default for flag %s: %v", flagname, err))
	}
}

// snakeCase converts CamelCase names to snake_case, keeping initialisms
// together.
func snakeCase(val string) string {
	out := make([]rune, 0, len(val)+4)
	runes := []rune(val)
	for i, r := range runes {
		if i > 0 && isUpper(r) && (!isUpper(runes[i-1]) || (i+1 < len(runes) && !isUpper(runes[i+1]))) {
			out = append(out, '_')
		}
		out = append(out, r)
	}
	return strings.ToLower(string(out))
}

func isUpper(r rune) bool { return 'A' <= r && r <= 'Z' }

// hyphenate converts snake_case to hyphenated flag names.
func hyphenate(val string) string {
	return strings.ReplaceAll(val, "_", "-")
}
