package report

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/xelth-com/palletdamage/internal/draft"
	"github.com/xelth-com/palletdamage/internal/models"
)

func draftWithSaved(sid string, indices ...int) draft.Draft {
	d := draft.New(sid, models.ReportTypeStandard)
	for _, i := range indices {
		p := draft.NewPallet()
		idx := i
		p.ServerIndex = &idx
		d.Saved = append(d.Saved, p)
	}
	return d
}

func TestSmartSync_UploadsOnlyMissingPallets(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(draftWithSaved("s1", 0, 1, 2))
	env.api.UpdateSession(context.Background(), "s1", map[string]string{
		models.PalletPath(0, models.PalletJSONField): "{}",
		models.PalletPath(5, models.PalletJSONField): "{}",
	})
	before := env.api.palletUpdates()

	rep, err := env.svc.SmartSync(context.Background())
	if err != nil {
		t.Fatalf("SmartSync failed: %v", err)
	}
	if !reflect.DeepEqual(rep.SyncedPallets, []int{1, 2}) {
		t.Errorf("expected pallets 1,2 synced, got %v", rep.SyncedPallets)
	}
	if !reflect.DeepEqual(rep.SkippedPallets, []int{0}) {
		t.Errorf("expected pallet 0 skipped, got %v", rep.SkippedPallets)
	}
	if len(rep.Warnings) != 1 {
		t.Errorf("expected one warning for server-only pallet 5, got %v", rep.Warnings)
	}
	if got := env.api.palletUpdates() - before; got != 2 {
		t.Errorf("expected 2 pallet uploads, got %d", got)
	}

	doc := env.api.sessions["s1"]
	for _, path := range []string{models.VehiclePositionsPath, models.VehicleMarkersPath, models.VehicleHeightsPath} {
		if _, ok := doc[path]; !ok {
			t.Errorf("expected %s to be pushed", path)
		}
	}
	if _, ok := doc[models.HeaderPath("report_type")]; !ok {
		t.Error("expected header to be pushed")
	}
}

func TestSmartSync_SecondRunUploadsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(draftWithSaved("s1", 0, 1))
	ctx := context.Background()

	if _, err := env.svc.SmartSync(ctx); err != nil {
		t.Fatalf("first SmartSync failed: %v", err)
	}
	after := env.api.palletUpdates()

	rep, err := env.svc.SmartSync(ctx)
	if err != nil {
		t.Fatalf("second SmartSync failed: %v", err)
	}
	if len(rep.SyncedPallets) != 0 {
		t.Errorf("expected nothing synced, got %v", rep.SyncedPallets)
	}
	if env.api.palletUpdates() != after {
		t.Error("second pass must not upload pallets")
	}
}

func TestSmartSync_PalletWithoutIndexIsAnError(t *testing.T) {
	env := newTestEnv(t)
	d := draftWithSaved("s1", 0)
	d.Saved = append(d.Saved, draft.NewPallet())
	env.svc.Store().Replace(d)

	rep, err := env.svc.SmartSync(context.Background())
	if !errors.Is(err, ErrPalletWithoutIdx) {
		t.Fatalf("expected ErrPalletWithoutIdx, got %v", err)
	}
	if len(rep.Errors) != 1 {
		t.Errorf("expected one error entry, got %v", rep.Errors)
	}
	if !reflect.DeepEqual(rep.SyncedPallets, []int{0}) {
		t.Errorf("indexed pallets are still pushed, got %v", rep.SyncedPallets)
	}
}

func TestSmartSync_StopsOnFailedStep(t *testing.T) {
	env := newTestEnv(t)
	env.svc.Store().Replace(draftWithSaved("s1", 0))
	env.api.updateErr = func(fields map[string]string) error {
		if _, ok := fields[models.VehicleMarkersPath]; ok {
			return errors.New("413 payload too large")
		}
		return nil
	}

	if _, err := env.svc.SmartSync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := env.api.sessions["s1"][models.VehicleHeightsPath]; ok {
		t.Error("steps after the failure must not run")
	}
}
