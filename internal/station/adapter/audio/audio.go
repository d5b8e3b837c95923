// Package audio probes whether the station can play audio.
package audio

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/autopeer-io/groundpeer/internal/station/core"
)

const DefaultTimeout = 2 * time.Second

// Probe lists playback devices with aplay.
type Probe struct {
	command string
	args    []string
	timeout time.Duration
}

var _ core.AudioOutput = (*Probe)(nil)

func NewProbe() *Probe {
	return &Probe{command: "aplay", args: []string{"-l"}, timeout: DefaultTimeout}
}

// Available reports false when the device listing says there is no sound
// card. A listing that cannot be obtained at all is an error.
func (p *Probe) Available(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, p.command, p.args...).CombinedOutput()
	if strings.Contains(string(out), "no soundcards") {
		return false, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
