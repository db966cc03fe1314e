package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Templates       []string `json:"templates"`
	CurrentTemplate string   `json:"current_template,omitempty"`
	CurrentBuilding string   `json:"current_building,omitempty"`
	CatalogDigest   string   `json:"catalog_digest,omitempty"`
}

// Editor commands carried by CMD.
const (
	CmdCreateBuilding  = "create_building"
	CmdOpenBuilding    = "open_building"
	CmdDestroyBuilding = "destroy_building"
	CmdRefresh         = "refresh"
	CmdRandomize       = "randomize"
	CmdMoveFloorUp     = "move_floor_up"
	CmdMoveFloorDown   = "move_floor_down"
	CmdAddFloor        = "add_floor"
	CmdDeleteFloor     = "delete_floor"
	CmdRecreateFloor   = "recreate_floor"
	CmdRecreateRoof    = "recreate_roof"
	CmdSelectFloor     = "select_floor"
	CmdSetTemplate     = "set_template"
	CmdSaveSnapshot    = "save_snapshot"
)

// CMD (client -> server)
type CmdMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	CmdID           string  `json:"cmd_id"`
	Cmd             string  `json:"cmd"`
	Args            CmdArgs `json:"args"`
}

// CmdArgs is the union of every command's arguments; each command reads
// only the fields it needs.
type CmdArgs struct {
	Building      string `json:"building,omitempty"`
	Template      string `json:"template,omitempty"`
	FloorTemplate string `json:"floor_template,omitempty"`
	RoofTemplate  string `json:"roof_template,omitempty"`
	Floors        int    `json:"floors,omitempty"`
	Level         *int   `json:"level,omitempty"`
	Seed          *int64 `json:"seed,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CmdID           string `json:"cmd_id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`

	// Building is the serialized building after the command, if one is open.
	Building      json.RawMessage `json:"building,omitempty"`
	SelectedLevel *int            `json:"selected_level,omitempty"`
	Snapshot      string          `json:"snapshot,omitempty"`
}
