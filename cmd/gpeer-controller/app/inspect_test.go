package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/autopeer-io/groundpeer/internal/station/model"
	"github.com/autopeer-io/groundpeer/internal/station/store"
	"github.com/autopeer-io/groundpeer/pkg/options"
)

func TestInspect(t *testing.T) {
	opts := &options.StoreOptions{Driver: options.StoreDriverBolt, Path: filepath.Join(t.TempDir(), "vehicles.db")}

	st, err := store.New(opts)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	snaps := []*model.Snapshot{
		{VehicleID: 42, Name: "falcon", Version: model.NewVersion(1, 5, 78), Relay: model.Relay{EnabledOnLink: model.RelayDisabled}},
		{VehicleID: 7, Name: "kestrel", Relay: model.Relay{EnabledOnLink: 1, RelayedVehicleID: 42}},
	}
	for _, s := range snaps {
		if err := st.Put(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := inspect(ctx, &out, opts); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header and 2 rows:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[1], "7") || !strings.Contains(lines[1], "link 1 -> 42") {
		t.Errorf("first row should be vehicle 7 relaying to 42: %q", lines[1])
	}
	if !strings.Contains(lines[2], "falcon") || !strings.Contains(lines[2], "off") {
		t.Errorf("second row should be falcon without relay: %q", lines[2])
	}
}
