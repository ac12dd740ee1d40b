// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package process implements the shared bootstrap for webpods commands:
// flag/environment/config-file resolution, logger setup and signal-aware
// contexts.
package process

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"storj.io/webpods/private/cfgstruct"
)

// DefaultCfgFilename is the default filename used for storing a configuration.
const DefaultCfgFilename = "config.yaml"

var (
	contextMtx sync.Mutex
	contexts   = map[*cobra.Command]context.Context{}
)

// Bind sets flags on a command that match the configuration struct
// 'config'. It ensures that the config has all of the values loaded into it
// when the command runs.
func Bind(cmd *cobra.Command, config interface{}, opts ...cfgstruct.BindOpt) {
	cfgstruct.Bind(cmd.Flags(), config, opts...)
}

// Exec runs a Cobra command. If a "config-dir" flag is defined the config
// file in that directory is loaded, with environment variables (prefix
// WEBPODS_) taking precedence over it and explicit flags over both.
func Exec(cmd *cobra.Command) {
	cmd.AddCommand(&cobra.Command{
		Use:    "version",
		Short:  "output the version's build information, if any",
		RunE:   versionCmd,
		Hidden: true,
	})

	cmd.PersistentFlags().String("log.level", "info", "the minimum log level to log")
	cmd.PersistentFlags().Bool("log.development", false, "if true, set the logger to development mode")

	cleanup(cmd)
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// Ctx returns the appropriate context.Context for ExecuteWithConfig commands.
// The context is canceled on SIGINT or SIGTERM.
func Ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	contextMtx.Lock()
	ctx := contexts[cmd]
	contextMtx.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(c)
	}()

	return ctx, cancel
}

// cleanup wraps all the commands' RunE methods with the config-resolution
// and logger bootstrap.
func cleanup(cmd *cobra.Command) {
	for _, ccmd := range cmd.Commands() {
		cleanup(ccmd)
	}
	if cmd.RunE == nil {
		return
	}

	internalRun := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		vip := viper.New()
		if err := vip.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		vip.SetEnvPrefix("webpods")
		vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		vip.AutomaticEnv()

		if configFlag := cmd.Flags().Lookup("config-dir"); configFlag != nil && configFlag.Value.String() != "" {
			configPath := filepath.Join(configFlag.Value.String(), DefaultCfgFilename)
			if _, err := os.Stat(configPath); err == nil {
				vip.SetConfigFile(configPath)
				if err := vip.ReadInConfig(); err != nil {
					return err
				}
			}
		}

		// Propagate resolved values (config file and environment) into any
		// flag the user did not set explicitly on the command line.
		var brokenKeys []string
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed || !vip.IsSet(f.Name) {
				return
			}
			if err := f.Value.Set(vip.GetString(f.Name)); err != nil {
				brokenKeys = append(brokenKeys, f.Name)
			}
		})
		if len(brokenKeys) > 0 {
			return fmt.Errorf("invalid configuration values for keys: %s", strings.Join(brokenKeys, ", "))
		}

		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		zap.ReplaceGlobals(logger)

		ctx := context.Background()
		contextMtx.Lock()
		contexts[cmd] = ctx
		contextMtx.Unlock()
		defer func() {
			contextMtx.Lock()
			delete(contexts, cmd)
			contextMtx.Unlock()
		}()

		err = internalRun(cmd, args)
		if err != nil {
			logger.Error("process exited with error", zap.Error(err))
		}
		return err
	}
}

func versionCmd(cmd *cobra.Command, args []string) error {
	fmt.Println("webpods (source build)")
	return nil
}
