package ui

import (
	stderrors "errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/rileyhilliard/netwatch/internal/errors"
	"github.com/rileyhilliard/netwatch/internal/telemetry"
)

// PickDevice asks the user to choose a device and returns its ID. A single
// device is returned without asking. An empty ID means the user cancelled.
func PickDevice(devices []telemetry.Entity) (string, error) {
	if len(devices) == 0 {
		return "", errors.New(errors.ErrSelection,
			"The backend reported no devices",
			"Check the server is collecting from at least one device.")
	}
	if len(devices) == 1 {
		return devices[0].ID, nil
	}

	var selected string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which device do you want to watch?").
				Options(deviceOptions(devices)...).
				Value(&selected),
		),
	)

	if err := form.Run(); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", errors.WrapWithCode(err, errors.ErrSelection,
			"Device picker failed",
			"Pass --device to pick one directly.")
	}
	return selected, nil
}

func deviceOptions(devices []telemetry.Entity) []huh.Option[string] {
	options := make([]huh.Option[string], len(devices))
	for i, d := range devices {
		options[i] = huh.NewOption(d.DisplayName(), d.ID)
	}
	return options
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
