package tubescribe

import (
	"errors"
	"os"

	"github.com/manifoldco/promptui"
)

// interactive reports whether stdin is a terminal.
func interactive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// confirm asks a yes/no question. --yes answers yes; without a terminal the
// answer is def.
func confirm(label string, def bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !interactive() {
		return def, nil
	}
	p := promptui.Prompt{Label: label, IsConfirm: true}
	if def {
		p.Default = "y"
	}
	if _, err := p.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, err
		}
		return def, nil
	}
	return true, nil
}
