package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorFail   = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderStatus colors a health status: green for serving states, red otherwise.
func RenderStatus(status string) string {
	switch status {
	case "ok", "SERVING":
		return render(colorOK, status)
	}
	return render(colorFail, status)
}

// RenderTarget renders an org/space pair, muting wildcard components.
func RenderTarget(org, space string) string {
	if space == "*" {
		return org + "/" + RenderMuted(space)
	}
	return org + "/" + space
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

// ForceColor enables color output regardless of the terminal.
func ForceColor() {
	noColor = false
}

// Init disables color output unless ShouldUseColor allows it.
func Init() {
	if !ShouldUseColor() {
		ForceNoColor()
	}
}
