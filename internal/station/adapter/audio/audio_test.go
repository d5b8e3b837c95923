package audio

import (
	"context"
	"testing"
	"time"
)

func TestAvailable(t *testing.T) {
	tests := []struct {
		name    string
		probe   *Probe
		want    bool
		wantErr bool
	}{
		{
			name:  "sound card listed",
			probe: &Probe{command: "echo", args: []string{"card 0: Headphones [bcm2835 Headphones], device 0"}, timeout: time.Second},
			want:  true,
		},
		{
			name:  "no sound card",
			probe: &Probe{command: "echo", args: []string{"aplay: device_list:274: no soundcards found..."}, timeout: time.Second},
			want:  false,
		},
		{
			name:    "missing binary",
			probe:   &Probe{command: "/nonexistent/aplay", timeout: time.Second},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.probe.Available(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Available() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Available() = %v, want %v", got, tt.want)
			}
		})
	}
}
