package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/host/memscene"
	"buildgen.ai/internal/persistence/profile"
	"buildgen.ai/internal/protocol"
	"buildgen.ai/internal/sim/editor"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
)

func discard() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func startServer(t *testing.T) string {
	t.Helper()
	bt := templates.New("town")
	_ = bt.AddFloorTemplate(templates.NewFloorTemplate("storey"))
	_ = bt.AddRoofTemplate(templates.NewRoofTemplate("flat"))

	scene := memscene.New()
	for _, n := range bt.Blueprints() {
		if err := scene.AddBlueprint(n); err != nil {
			t.Fatalf("AddBlueprint: %v", err)
		}
	}
	store, err := profile.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("profile.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sess := editor.New(generator.New(scene), store)
	sess.Profile().AddTemplate(bt)
	if err := sess.SetTemplate("town"); err != nil {
		t.Fatalf("SetTemplate: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = sess.Run(ctx) }()

	srv := httptest.NewServer(NewServer(sess, tuning.Defaults(), "digest", discard()).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}); err != nil {
		t.Fatalf("write HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("read WELCOME: %v", err)
	}
	return w
}

func TestServer_HandshakeAndCommands(t *testing.T) {
	conn := dial(t, startServer(t))
	w := hello(t, conn)
	if w.Type != protocol.TypeWelcome || w.SessionID == "" || w.CurrentTemplate != "town" || w.CatalogDigest != "digest" {
		t.Fatalf("welcome=%+v", w)
	}

	level := 0
	cmds := []protocol.CmdMsg{
		{Cmd: protocol.CmdCreateBuilding, Args: protocol.CmdArgs{Building: "b", Floors: 2}},
		{Cmd: protocol.CmdSelectFloor, Args: protocol.CmdArgs{Level: &level}},
		{Cmd: protocol.CmdMoveFloorUp, Args: protocol.CmdArgs{Level: &level}},
	}
	for i, c := range cmds {
		c.Type = protocol.TypeCmd
		c.ProtocolVersion = protocol.Version
		c.CmdID = c.Cmd
		if err := conn.WriteJSON(c); err != nil {
			t.Fatalf("write CMD: %v", err)
		}
		var res protocol.ResultMsg
		if err := conn.ReadJSON(&res); err != nil {
			t.Fatalf("read RESULT: %v", err)
		}
		if !res.OK || res.CmdID != c.Cmd {
			t.Fatalf("cmd %d %s: %+v", i, c.Cmd, res)
		}
		if i == len(cmds)-1 && (res.SelectedLevel == nil || *res.SelectedLevel != 1) {
			t.Fatalf("selection did not follow the moved floor: %+v", res.SelectedLevel)
		}
	}

	var res protocol.ResultMsg
	_ = conn.WriteJSON(protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, CmdID: "x", Cmd: protocol.CmdDeleteFloor})
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read RESULT: %v", err)
	}
	if res.OK || res.Code != protocol.ErrBadRequest {
		t.Fatalf("missing level: %+v", res)
	}
	var building map[string]any
	if err := json.Unmarshal(res.Building, &building); err != nil || building["object"] != "b" {
		t.Fatalf("failed result building=%s err=%v", res.Building, err)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CMD","protocol_version":"0.1","cmd_id":"old","cmd":"refresh"}`))
	if err := conn.ReadJSON(&res); err != nil {
		t.Fatalf("read RESULT: %v", err)
	}
	if res.Code != protocol.ErrBadRequest || res.CmdID != "old" {
		t.Fatalf("old protocol: %+v", res)
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	conn := dial(t, startServer(t))
	_ = conn.WriteJSON(protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, CmdID: "1", Cmd: protocol.CmdRefresh})
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestDecodeCmd(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"type":"CMD","protocol_version":"1.0","cmd_id":"1","cmd":"refresh"}`, true},
		{`{"type":"HELLO","protocol_version":"1.0"}`, false},
		{`{"type":"CMD","protocol_version":"1.0","args":{"level":"x"}}`, false},
		{`not json`, false},
	}
	for _, tc := range cases {
		_, reject := decodeCmd([]byte(tc.raw))
		if (reject == nil) != tc.want {
			t.Fatalf("%s: accepted=%v want %v", tc.raw, reject == nil, tc.want)
		}
		if reject != nil && reject.Code != protocol.ErrBadRequest {
			t.Fatalf("%s: code=%s", tc.raw, reject.Code)
		}
	}
}
