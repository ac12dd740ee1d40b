// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/webpods"
	"storj.io/webpods/podbase"
	"storj.io/webpods/private/cfgstruct"
	"storj.io/webpods/private/process"
)

var (
	rootCmd = &cobra.Command{
		Use:   "webpods",
		Short: "WebPods server",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the webpods server",
		RunE:  cmdRun,
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	migrationCmd = &cobra.Command{
		Use:   "migration",
		Short: "Migrate the database to the latest version",
		RunE:  cmdMigration,
	}

	confDir string

	runCfg   webpods.Config
	setupCfg webpods.Config
)

func init() {
	defaultConfDir := defaultConfigDir()
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for webpods configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(migrationCmd)
	process.Bind(runCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	process.Bind(migrationCmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(setupDir, process.DefaultCfgFilename)); err == nil {
		return errs.New("webpods configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, process.DefaultCfgFilename))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, err := podbase.Open(ctx, log.Named("podbase"), runCfg.Database, podbase.Config{
		ApplicationName: "webpods",
		MinExternalSize: runCfg.Blobs.MinExternalSize,
	})
	if err != nil {
		return errs.New("error connecting to pod database: %+v", err)
	}
	defer func() {
		err = errs.Combine(err, db.Close())
	}()

	if err := db.MigrateToLatest(ctx); err != nil {
		return errs.New("error migrating pod database: %+v", err)
	}

	peer, err := webpods.New(log, db, runCfg)
	if err != nil {
		return err
	}

	runError := peer.Run(ctx)
	closeError := peer.Close()
	return errs.Combine(runError, closeError)
}

func cmdMigration(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, err := podbase.Open(ctx, log.Named("migration"), runCfg.Database, podbase.Config{
		ApplicationName: "webpods-migration",
	})
	if err != nil {
		return errs.New("error connecting to pod database: %+v", err)
	}
	defer func() {
		err = errs.Combine(err, db.Close())
	}()

	return db.MigrateToLatest(ctx)
}

// defaultConfigDir returns the OS-conventional directory for webpods
// configuration.
func defaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "webpods")
}

func main() {
	process.Exec(rootCmd)
}
