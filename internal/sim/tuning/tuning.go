package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	DefaultBuildingID string `yaml:"default_building_id"`
	DefaultFloors     int    `yaml:"default_floors"`
	MaxFloors         int    `yaml:"max_floors"`

	Journal bool `yaml:"journal"`
	Index   bool `yaml:"index"`

	Bridge Bridge `yaml:"bridge"`
}

type Bridge struct {
	InboxSize       int   `yaml:"inbox_size"`
	SendQueue       int   `yaml:"send_queue"`
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:   "1.0",
		DefaultBuildingID: "building",
		DefaultFloors:     3,
		MaxFloors:         64,
		Journal:           true,
		Index:             true,
		Bridge: Bridge{
			InboxSize:       64,
			SendQueue:       32,
			MaxMessageBytes: 1 << 20,
		},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.DefaultBuildingID == "":
		return fmt.Errorf("default_building_id is empty")
	case t.DefaultFloors < 1:
		return fmt.Errorf("default_floors must be >= 1, got %d", t.DefaultFloors)
	case t.MaxFloors < t.DefaultFloors:
		return fmt.Errorf("max_floors %d < default_floors %d", t.MaxFloors, t.DefaultFloors)
	case t.Bridge.InboxSize < 1 || t.Bridge.SendQueue < 1:
		return fmt.Errorf("bridge queues must be >= 1")
	case t.Bridge.MaxMessageBytes < 1024:
		return fmt.Errorf("bridge.max_message_bytes must be >= 1024")
	}
	return nil
}
