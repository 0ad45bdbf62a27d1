// SPDX-License-Identifier: MPL-2.0

// Package tui wraps charmbracelet/huh to provide the interactive prompts used
// by the menu front-end.
package tui

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrCancelled is returned when the user aborts a prompt (esc or ctrl-c).
var ErrCancelled = errors.New("cancelled")

// Config holds common configuration for TUI prompts.
type Config struct {
	// Accessible enables plain prompt/response mode for screen readers and
	// non-TTY input.
	Accessible bool
}

// DefaultConfig enables accessible mode when stdin is not a terminal or the
// ACCESSIBLE environment variable is set.
func DefaultConfig() Config {
	noTTY := !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd())
	return Config{
		Accessible: noTTY || os.Getenv("ACCESSIBLE") != "",
	}
}

// Choose presents a single-select list and returns the chosen option.
func Choose(title string, options []string, cfg Config) (string, error) {
	var result string

	huhOpts := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOpts[i] = huh.NewOption(opt, opt)
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(huhOpts...).
			Value(&result),
	)).WithAccessible(cfg.Accessible)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", err
	}
	return result, nil
}

// Input presents a single-line text prompt and returns the entered value.
func Input(title, placeholder string, cfg Config) (string, error) {
	var result string

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(title).
			Placeholder(placeholder).
			Value(&result),
	)).WithAccessible(cfg.Accessible)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrCancelled
		}
		return "", err
	}
	return result, nil
}

// Confirm presents a yes/no prompt.
func Confirm(title string, cfg Config) (bool, error) {
	var result bool

	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Affirmative("Yes").
			Negative("No").
			Value(&result),
	)).WithAccessible(cfg.Accessible)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrCancelled
		}
		return false, err
	}
	return result, nil
}
