package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/protocol"
	"buildgen.ai/internal/sim/editor"
	"buildgen.ai/internal/sim/tuning"
)

// Server bridges websocket clients to one editor session. Every client
// command goes through the session's Run loop, so clients never race.
type Server struct {
	session       *editor.Session
	log           log15.Logger
	bridge        tuning.Bridge
	catalogDigest string

	upgrader websocket.Upgrader
}

func NewServer(sess *editor.Session, tune tuning.Tuning, catalogDigest string, logger log15.Logger) *Server {
	return &Server{
		session:       sess,
		log:           logger,
		bridge:        tune.Bridge,
		catalogDigest: catalogDigest,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(s.bridge.MaxMessageBytes)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sessionID := s.handshake(ctx, conn)
		if sessionID == "" {
			return
		}
		log := s.log.New("session", sessionID)
		log.Info("client connected", "remote", r.RemoteAddr)

		out := make(chan []byte, s.bridge.SendQueue)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(res protocol.ResultMsg) bool {
			b, err := json.Marshal(res)
			if err != nil {
				log.Error("encode result", "cmd_id", res.CmdID, "err", err)
				return true
			}
			select {
			case out <- b:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			cmd, reject := decodeCmd(msg)
			if reject != nil {
				if !send(*reject) {
					break
				}
				continue
			}
			res, err := s.session.Submit(ctx, cmd)
			if err != nil {
				break
			}
			if !send(res) {
				break
			}
		}
		cancel()
		log.Info("client disconnected")
	}
}

func badRequest(cmdID, msg string) *protocol.ResultMsg {
	return &protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		CmdID:           cmdID,
		Code:            protocol.ErrBadRequest,
		Message:         msg,
	}
}

// decodeCmd parses one client frame. Frames that are not a usable CMD get a
// RESULT with E_BAD_REQUEST.
func decodeCmd(msg []byte) (protocol.CmdMsg, *protocol.ResultMsg) {
	var cmd protocol.CmdMsg
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return cmd, badRequest("", "malformed json")
	}
	if base.Type != protocol.TypeCmd {
		return cmd, badRequest("", "unexpected message type "+base.Type)
	}
	if err := json.Unmarshal(msg, &cmd); err != nil {
		return cmd, badRequest("", "malformed CMD: "+err.Error())
	}
	if cmd.ProtocolVersion != protocol.Version {
		return cmd, badRequest(cmd.CmdID, "bad protocol_version")
	}
	return cmd, nil
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	info, err := s.session.RequestInfo(ctx)
	if err != nil {
		return ""
	}
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Templates:       info.Templates,
		CurrentTemplate: info.CurrentTemplate,
		CurrentBuilding: info.CurrentBuilding,
		CatalogDigest:   s.catalogDigest,
	}
	if welcome.Templates == nil {
		welcome.Templates = []string{}
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	s.log.Debug("handshake", "client", hello.ClientName, "session", welcome.SessionID)
	return welcome.SessionID
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
