package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := "default_floors: 5\nbridge:\n  inbox_size: 8\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DefaultFloors != 5 || got.Bridge.InboxSize != 8 {
		t.Fatalf("overrides lost: %+v", got)
	}
	def := Defaults()
	if got.MaxFloors != def.MaxFloors || got.Bridge.SendQueue != def.Bridge.SendQueue || got.DefaultBuildingID != def.DefaultBuildingID {
		t.Fatalf("defaults lost: %+v", got)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "default_floors: [",
		"zero floors":    "default_floors: 0\n",
		"max below":      "default_floors: 4\nmax_floors: 2\n",
		"empty id":       "default_building_id: \"\"\n",
		"tiny message":   "bridge:\n  max_message_bytes: 10\n",
		"no inbox slots": "bridge:\n  inbox_size: 0\n",
	}
	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file: expected error")
	}
}
