package editor

import (
	"errors"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/protocol"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/templates"
)

// Code maps an editor error to its bridge error code.
func Code(err error) string {
	var (
		lookup    *building.LookupError
		invalid   *templates.ValidationError
		collision *host.NameCollisionError
		persist   *codec.PersistenceError
		bad       *BadRequestError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &lookup), errors.Is(err, building.ErrNotFound), errors.Is(err, host.ErrNoSuchNode):
		return protocol.ErrLookup
	case errors.As(err, &invalid):
		return protocol.ErrValidation
	case errors.As(err, &collision):
		return protocol.ErrNameCollision
	case errors.As(err, &persist):
		return protocol.ErrPersistence
	case errors.As(err, &bad), errors.Is(err, ErrNoBuilding), errors.Is(err, ErrNoTemplate), errors.Is(err, building.ErrLevelOccupied):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

func failure(cmdID, code, msg string) protocol.ResultMsg {
	return protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		CmdID:           cmdID,
		Code:            code,
		Message:         msg,
	}
}

// Exec runs one command on the calling goroutine.
func (s *Session) Exec(msg protocol.CmdMsg) protocol.ResultMsg {
	snap, err := s.exec(msg)
	if err != nil {
		code := Code(err)
		if code == protocol.ErrInternal {
			s.log.Error("command failed", "cmd", msg.Cmd, "err", err)
		} else {
			s.log.Debug("command rejected", "cmd", msg.Cmd, "code", code, "err", err)
		}
		res := failure(msg.CmdID, code, err.Error())
		s.attachState(&res)
		return res
	}
	res := protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		CmdID:           msg.CmdID,
		OK:              true,
		Snapshot:        snap,
	}
	s.attachState(&res)
	return res
}

func (s *Session) attachState(res *protocol.ResultMsg) {
	if s.cur != nil {
		if blob, err := codec.MarshalBuilding(s.cur); err == nil {
			res.Building = blob
		}
	}
	if sel, ok := s.Selected(); ok {
		res.SelectedLevel = &sel
	}
}

func level(a protocol.CmdArgs) (int, error) {
	if a.Level == nil {
		return 0, badRequest("missing level")
	}
	return *a.Level, nil
}

func (s *Session) exec(msg protocol.CmdMsg) (string, error) {
	a := msg.Args
	withLevel := func(fn func(int) error) error {
		l, err := level(a)
		if err != nil {
			return err
		}
		return fn(l)
	}
	switch msg.Cmd {
	case protocol.CmdCreateBuilding:
		return "", s.CreateBuilding(a.Building, a.Floors, a.FloorTemplate, a.RoofTemplate)
	case protocol.CmdOpenBuilding:
		if a.Building == "" {
			return "", badRequest("missing building")
		}
		return "", s.OpenBuilding(a.Building)
	case protocol.CmdDestroyBuilding:
		id := a.Building
		if id == "" && s.cur != nil {
			id = s.cur.ID()
		}
		if id == "" {
			return "", badRequest("missing building")
		}
		return "", s.DestroyBuilding(id)
	case protocol.CmdRefresh:
		return "", s.Refresh()
	case protocol.CmdRandomize:
		return "", s.Randomize()
	case protocol.CmdMoveFloorUp:
		return "", withLevel(s.MoveFloorUp)
	case protocol.CmdMoveFloorDown:
		return "", withLevel(s.MoveFloorDown)
	case protocol.CmdAddFloor:
		return "", withLevel(s.AddFloor)
	case protocol.CmdDeleteFloor:
		return "", withLevel(s.DeleteFloor)
	case protocol.CmdRecreateFloor:
		return "", withLevel(func(l int) error { return s.RecreateFloor(l, a.FloorTemplate, a.Seed) })
	case protocol.CmdRecreateRoof:
		return "", s.RecreateRoof(a.RoofTemplate, a.Seed)
	case protocol.CmdSelectFloor:
		return "", withLevel(s.SelectFloor)
	case protocol.CmdSetTemplate:
		if a.Template == "" {
			return "", badRequest("missing template")
		}
		return "", s.SetTemplate(a.Template)
	case protocol.CmdSaveSnapshot:
		return s.SaveSnapshot()
	default:
		return "", badRequest("unknown command %q", msg.Cmd)
	}
}
