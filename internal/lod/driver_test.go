package lod

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestDriver_StepAppliesCommandsAndPublishes(t *testing.T) {
	clock := at(0)
	d := NewDriver(New(testOptions()), DriverOptions{
		Now:    func() time.Time { return clock },
		Logger: zerolog.Nop(),
	})

	if d.Ready() {
		t.Fatalf("expected driver not ready before a catalog")
	}
	if !d.ReplaceCatalog(entries(40)) {
		t.Fatalf("expected catalog command to be queued")
	}

	d.PublishViewport(viewEvent(14))
	d.PublishViewport(viewEvent(15))
	if got := d.MailboxDrops(); got != 1 {
		t.Fatalf("expected one overwritten camera event, got %d", got)
	}

	d.Step(clock)
	if !d.Ready() {
		t.Fatalf("expected driver ready after the catalog was applied")
	}
	snap := d.Snapshot()
	if snap.CatalogSize != 40 {
		t.Fatalf("expected catalog size 40, got %d", snap.CatalogSize)
	}
	if len(snap.Render.Full) != 25 || len(snap.Render.Dots) != 15 {
		t.Fatalf("expected 25/15 split, got %d/%d", len(snap.Render.Full), len(snap.Render.Dots))
	}
	if !snap.Moving {
		t.Fatalf("expected camera to be moving right after an event")
	}

	d.PublishIdle()
	clock = at(16)
	d.Step(clock)
	if d.Snapshot().Moving {
		t.Fatalf("expected idle notification to clear the moving flag")
	}
}

func TestDriver_SelectionAndTap(t *testing.T) {
	var selected []string
	opts := testOptions()
	opts.OnSelect = func(id string) { selected = append(selected, id) }
	d := NewDriver(New(opts), DriverOptions{Logger: zerolog.Nop()})

	d.ReplaceCatalog(entries(40))
	d.PublishViewport(viewEvent(15))
	d.Step(at(0))

	d.SetSelection("m030")
	d.Step(at(16))
	snap := d.Snapshot()
	if snap.SelectedID != "m030" {
		t.Fatalf("expected selection m030, got %q", snap.SelectedID)
	}
	var found bool
	for _, m := range snap.Render.Full {
		if m.ID == "m030" {
			found = m.Selected
		}
	}
	if !found {
		t.Fatalf("expected m030 in the full set and flagged selected")
	}

	result := make(chan bool, 1)
	d.Tap(FeatureRef("marker:m035"), result)
	d.Step(at(32))
	if ok := <-result; !ok {
		t.Fatalf("expected tap on m035 to be accepted")
	}
	if len(selected) != 1 || selected[0] != "m035" {
		t.Fatalf("expected onSelect(m035), got %v", selected)
	}
}

func TestDriver_SubmitRejectsWhenFull(t *testing.T) {
	d := NewDriver(New(testOptions()), DriverOptions{CommandBuffer: 1, Logger: zerolog.Nop()})
	if !d.SetSelection("a") {
		t.Fatalf("expected first command to be queued")
	}
	if d.SetSelection("b") {
		t.Fatalf("expected second command to be rejected on a full queue")
	}
}

func TestDriver_RunStopsOnCancel(t *testing.T) {
	d := NewDriver(New(testOptions()), DriverOptions{Frame: time.Millisecond, Logger: zerolog.Nop()})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.ReplaceCatalog(entries(5))
	deadline := time.After(2 * time.Second)
	for !d.Ready() {
		select {
		case <-deadline:
			t.Fatalf("expected catalog to be applied by the run loop")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected Run to return after cancel")
	}
}
