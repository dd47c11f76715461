package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/pflag"

	"audioscribe/history"
	"audioscribe/prefs"
)

const (
	shortIDLength = 8
	listLayout    = "2006-01-02 15:04"
)

func (a *app) historyCommand(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	asJSON := fs.Bool("json", false, "print as JSON")
	yes := fs.BoolP("yes", "y", false, "clear without asking")
	if err := parseFlags(fs, args, a.std, "history [list|show <id>|clear] [flags]"); err != nil {
		return err
	}

	sub := "list"
	if fs.NArg() > 0 {
		sub = fs.Arg(0)
	}

	switch sub {
	case "list", "ls":
		if fs.NArg() > 1 {
			return usagef("history list takes no arguments")
		}
		return a.listHistory(*asJSON)
	case "show":
		if fs.NArg() != 2 {
			return usagef("history show takes one id")
		}
		item, err := a.findHistory(fs.Arg(1))
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(a.std.out, item)
		}
		fmt.Fprintln(a.std.out, item.Text)
		return nil
	case "clear":
		if fs.NArg() > 1 {
			return usagef("history clear takes no arguments")
		}
		return a.clearHistory(*yes)
	}
	return usagef("unknown history command %q", sub)
}

func (a *app) listHistory(asJSON bool) error {
	items := a.history.Items()
	if asJSON {
		if items == nil {
			items = []history.Transcription{}
		}
		return writeJSON(a.std.out, items)
	}

	if len(items) == 0 {
		fmt.Fprintln(a.std.out, infoStyle.Render("No transcriptions yet."))
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(a.std.out, "%s  %s  %s\n", shortID(item.ID), item.Date.Local().Format(listLayout), item.AudioName)
		fmt.Fprintf(a.std.out, "    %s\n", history.Truncate(strings.Join(strings.Fields(item.Text), " "), history.PreviewLength))
	}
	return nil
}

// findHistory matches a full id or a unique prefix of one.
func (a *app) findHistory(id string) (history.Transcription, error) {
	if item, ok := a.history.Get(id); ok {
		return item, nil
	}

	var matches []history.Transcription
	for _, item := range a.history.Items() {
		if strings.HasPrefix(item.ID, id) {
			matches = append(matches, item)
		}
	}
	switch len(matches) {
	case 0:
		return history.Transcription{}, fmt.Errorf("no transcription with id %q", id)
	case 1:
		return matches[0], nil
	}
	return history.Transcription{}, fmt.Errorf("id %q is ambiguous", id)
}

func (a *app) clearHistory(yes bool) error {
	if a.history.Len() == 0 {
		fmt.Fprintln(a.std.out, infoStyle.Render("History is already empty."))
		return nil
	}

	if !yes {
		if !a.std.interactive {
			return usagef("history clear needs --yes when not run from a terminal")
		}
		var confirmed bool
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Clear %d saved transcriptions?", a.history.Len())).
				Affirmative("Clear").
				Negative("Keep").
				Value(&confirmed),
		)).WithTheme(huh.ThemeCatppuccin()).Run()
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}
		if !confirmed {
			fmt.Fprintln(a.std.out, infoStyle.Render("History kept."))
			return nil
		}
	}

	a.history.Clear()
	fmt.Fprintln(a.std.out, successStyle.Render("History cleared."))
	return nil
}

func shortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func (a *app) themeCommand(_ context.Context, args []string) error {
	fs := pflag.NewFlagSet("theme", pflag.ContinueOnError)
	if err := parseFlags(fs, args, a.std, "theme [light|dark|toggle]"); err != nil {
		return err
	}

	switch fs.NArg() {
	case 0:
		fmt.Fprintln(a.std.out, a.themes.Current())
		return nil
	case 1:
	default:
		return usagef("theme takes at most one argument")
	}

	var theme prefs.Theme
	if arg := fs.Arg(0); arg == "toggle" {
		theme = a.themes.Toggle()
	} else {
		t, err := prefs.ParseTheme(arg)
		if err != nil {
			return usagef("%v", err)
		}
		a.themes.Set(t)
		theme = t
	}
	fmt.Fprintln(a.std.out, theme)
	return nil
}
