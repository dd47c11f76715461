package main

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/pflag"
)

// updateRepository is the GitHub repository releases are published to.
var updateRepository = "audioscribe/audioscribe"

func updateCommand(ctx context.Context, args []string, std streams) error {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	checkOnly := fs.Bool("check", false, "only report whether an update is available")
	if err := parseFlags(fs, args, std, "update [--check]"); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usagef("update takes no arguments")
	}
	if version == "dev" {
		return errors.New("development builds cannot update themselves; install a release build")
	}

	var (
		latest *selfupdate.Release
		found  bool
		err    error
	)
	withSpinner(std, "Checking for updates...", func() {
		latest, found, err = selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(updateRepository))
	})
	if err != nil {
		return fmt.Errorf("check for updates: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	if latest.LessOrEqual(version) {
		fmt.Fprintln(std.out, successStyle.Render(fmt.Sprintf("audioscribe %s is up to date", version)))
		return nil
	}
	if *checkOnly {
		fmt.Fprintln(std.out, infoStyle.Render(fmt.Sprintf("audioscribe %s is available (installed: %s)", latest.Version(), version)))
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	withSpinner(std, fmt.Sprintf("Installing %s...", latest.Version()), func() {
		err = selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe)
	})
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Fprintln(std.out, successStyle.Render("Updated to "+latest.Version()))
	return nil
}
