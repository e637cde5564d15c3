package player

import "strings"

// Key is a keyboard event as the host reports it.
type Key struct {
	Name  string
	Shift bool
	Ctrl  bool
	Meta  bool
}

// KeyCommand maps the keyboard surface onto commands. Zoom shortcuts belong
// to the host UI and are not mapped.
func KeyCommand(k Key) (Command, bool) {
	name := strings.ToLower(k.Name)
	switch {
	case name == "space" || name == " ":
		return TogglePlay{}, true
	case k.Shift && (name == "left" || name == "arrowleft"):
		return StepFrame{Frames: -1}, true
	case k.Shift && (name == "right" || name == "arrowright"):
		return StepFrame{Frames: 1}, true
	case name == "m" && !k.Ctrl && !k.Meta:
		return ToggleMute{}, true
	case name == "s" && (k.Ctrl || k.Meta):
		return ExportEDL{}, true
	}
	return nil, false
}
