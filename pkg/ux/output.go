// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders comparison verdicts for the graphcmp CLI.
//
// A Printer writes to one stream in one of three modes: rich (colors and
// icons, for terminals), plain (icons without color, for pipes and logs) and
// machine (tab-separated lines for scripts).
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // headings
	ColorTealDeep    = lipgloss.Color("#16858E") // borders
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// =============================================================================
// Mode
// =============================================================================

// Mode selects how a Printer renders.
type Mode string

const (
	// ModeRich uses colors, bold text and icons.
	ModeRich Mode = "rich"

	// ModePlain uses icons without escape sequences.
	ModePlain Mode = "plain"

	// ModeMachine writes tab-separated records with upper-case tags.
	ModeMachine Mode = "machine"
)

// ParseMode converts a string to a Mode, defaulting to ModePlain.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRich:
		return ModeRich
	case ModeMachine:
		return ModeMachine
	default:
		return ModePlain
	}
}

// DetectMode returns ModeRich when f is a terminal and ModePlain otherwise.
// NO_COLOR forces ModePlain.
func DetectMode(f *os.File) Mode {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

// =============================================================================
// Printer
// =============================================================================

type styles struct {
	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	errs    lipgloss.Style
	box     lipgloss.Style
}

// Printer writes styled output to one stream. Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	mode   Mode
	styles styles
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:    w,
		mode: mode,
		styles: styles{
			title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
			bold:    r.NewStyle().Bold(true),
			muted:   r.NewStyle().Foreground(ColorSlate),
			success: r.NewStyle().Foreground(ColorSuccess),
			warning: r.NewStyle().Foreground(ColorWarning),
			errs:    r.NewStyle().Foreground(ColorError),
			box: r.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorTealDeep).
				Padding(0, 1),
		},
	}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode { return p.mode }

func (p *Printer) style(s lipgloss.Style, text string) string {
	if p.mode != ModeRich {
		return text
	}
	return s.Render(text)
}

func (p *Printer) icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.style(p.styles.success, string(i))
	case IconWarning:
		return p.style(p.styles.warning, string(i))
	case IconError:
		return p.style(p.styles.errs, string(i))
	default:
		return p.style(p.styles.muted, string(i))
	}
}

// Title prints a heading. Machine mode prints nothing.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	fmt.Fprintln(p.w, p.style(p.styles.title, text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "OK\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess), p.style(p.styles.success, text))
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "WARN\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning), p.style(p.styles.warning, text))
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "ERROR\t%s\n", text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError), p.style(p.styles.errs, text))
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.mode == ModeMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", p.style(p.styles.muted, "│"), text)
}

// Verdict prints the outcome of one comparison.
//
// Description:
//
//	In machine mode the record is "MATCH\t<subject>" or
//	"MISMATCH\t<subject>\t<kind>\t<detail>", with newlines in detail
//	replaced by spaces so each verdict stays on one line. Other modes print
//	an icon line followed by the indented detail.
func (p *Printer) Verdict(match bool, subject, kind, detail string) {
	if p.mode == ModeMachine {
		if match {
			fmt.Fprintf(p.w, "MATCH\t%s\n", subject)
			return
		}
		fmt.Fprintf(p.w, "MISMATCH\t%s\t%s\t%s\n", subject, kind, strings.Join(strings.Fields(detail), " "))
		return
	}
	if match {
		fmt.Fprintf(p.w, "%s %s %s\n", p.icon(IconSuccess), subject, p.style(p.styles.success, "equivalent"))
		return
	}
	label := "differs"
	if kind != "" {
		label += " (" + kind + ")"
	}
	fmt.Fprintf(p.w, "%s %s %s\n", p.icon(IconError), subject, p.style(p.styles.errs, label))
	for _, line := range strings.Split(strings.TrimSpace(detail), "\n") {
		if line != "" {
			fmt.Fprintf(p.w, "    %s\n", p.style(p.styles.muted, line))
		}
	}
}

// Flag prints one policy flag and whether it is enabled.
func (p *Printer) Flag(name string, enabled bool, description string) {
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "%s\t%t\n", name, enabled)
		return
	}
	mark := p.icon(IconBullet)
	if enabled {
		mark = p.icon(IconSuccess)
	}
	fmt.Fprintf(p.w, "%s %-13s %s\n", mark, name, p.style(p.styles.muted, description))
}

// Summary prints batch totals.
func (p *Printer) Summary(matched, mismatched, failed int) {
	total := matched + mismatched + failed
	if p.mode == ModeMachine {
		fmt.Fprintf(p.w, "SUMMARY\tmatched=%d\tmismatched=%d\tfailed=%d\ttotal=%d\n", matched, mismatched, failed, total)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s  %s %s\n",
		p.style(p.styles.success, fmt.Sprint(matched)), p.style(p.styles.muted, "matched"),
		p.style(p.styles.errs, fmt.Sprint(mismatched)), p.style(p.styles.muted, "mismatched"),
		p.style(p.styles.warning, fmt.Sprint(failed)), p.style(p.styles.muted, "failed"),
		p.style(p.styles.bold, fmt.Sprint(total)), p.style(p.styles.muted, "total"),
	)
}

// Box prints content under a title inside a rounded border. Plain and
// machine modes print "title: content".
func (p *Printer) Box(title, content string) {
	if p.mode != ModeRich {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, p.styles.box.Width(60).Render(p.styles.title.Render(title)+"\n"+content))
}
