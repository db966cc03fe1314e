// Package editor drives building edits the way the interactive editor does:
// one current building, one current template, an optional selected floor,
// and the building's metadata rewritten after every change.
//
// A Session is not safe for concurrent use. Callers on other goroutines go
// through Submit, which funnels every command into the Run loop.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	log15 "gopkg.in/inconshreveable/log15.v2"

	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/persistence/profile"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/protocol"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/layout"
	"buildgen.ai/internal/sim/templates"
	"buildgen.ai/internal/sim/tuning"
)

var (
	ErrNoBuilding = errors.New("no building open")
	ErrNoTemplate = errors.New("no building template selected")
)

// BadRequestError rejects a command whose arguments cannot be acted on.
type BadRequestError struct{ Msg string }

func (e *BadRequestError) Error() string { return e.Msg }

func badRequest(format string, args ...any) error {
	return &BadRequestError{Msg: fmt.Sprintf(format, args...)}
}

// SnapshotRecorder is told about every snapshot the session writes.
type SnapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// Recorders fans every snapshot out to rs; nil recorders are skipped.
func Recorders(rs ...SnapshotRecorder) SnapshotRecorder {
	var out multiRecorder
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []SnapshotRecorder

func (m multiRecorder) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	for _, r := range m {
		r.RecordSnapshot(path, snap)
	}
}

type Session struct {
	gen   *generator.Generator
	store *profile.Store
	prof  *profile.Profile
	tune  tuning.Tuning
	log   log15.Logger

	pick       *layout.Picker
	snapDir    string
	archiveDir string
	index      SnapshotRecorder
	now        func() time.Time

	cur      *building.Building
	selected *int

	inbox chan cmdReq
	info  chan infoReq
}

type cmdReq struct {
	Msg  protocol.CmdMsg
	Resp chan protocol.ResultMsg
}

type infoReq struct {
	Resp chan Info
}

// Info is what a newly connected client is told about the session.
type Info struct {
	Templates       []string
	CurrentTemplate string
	CurrentBuilding string
}

type Option func(*Session)

func WithLogger(l log15.Logger) Option { return func(s *Session) { s.log = l } }

func WithTuning(t tuning.Tuning) Option { return func(s *Session) { s.tune = t } }

// WithSnapshots enables save_snapshot, writing under dir and reporting each
// file to rec (which may be nil).
func WithSnapshots(dir string, rec SnapshotRecorder) Option {
	return func(s *Session) {
		s.snapDir = dir
		s.index = rec
	}
}

// WithArchive makes destroy_building move the building's snapshots under
// dir. It needs WithSnapshots.
func WithArchive(dir string) Option { return func(s *Session) { s.archiveDir = dir } }

// WithTemplateSeed fixes the seed used for random template choices.
func WithTemplateSeed(seed int64) Option {
	return func(s *Session) { s.pick = layout.NewPicker(seed) }
}

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// New loads the profile from store and reopens the profile's current
// building when its metadata is still in the scene. A profile that cannot be
// read is replaced by the default profile and logged.
func New(gen *generator.Generator, store *profile.Store, opts ...Option) *Session {
	s := &Session{
		gen:   gen,
		store: store,
		tune:  tuning.Defaults(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = log15.New()
		s.log.SetHandler(log15.DiscardHandler())
	}
	if s.pick == nil {
		s.pick = layout.NewPicker(layout.FreshSeed())
	}
	s.inbox = make(chan cmdReq, s.tune.Bridge.InboxSize)
	s.info = make(chan infoReq)

	p, err := store.Load()
	if err != nil {
		s.log.Warn("profile unreadable, using default", "err", err)
	}
	s.prof = p
	s.tryLoadCurrent()
	return s
}

func (s *Session) Profile() *profile.Profile { return s.prof }

// Building is the open building, or nil.
func (s *Session) Building() *building.Building { return s.cur }

// Selected reports the selected level. The roof is selected as level
// FloorCount().
func (s *Session) Selected() (int, bool) {
	if s.selected == nil {
		return 0, false
	}
	return *s.selected, true
}

func (s *Session) setSelected(level int) { s.selected = &level }

// Run serves Submit calls until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-s.inbox:
			res := s.Exec(r.Msg)
			select {
			case r.Resp <- res:
			default:
				// Caller gave up; never block the loop.
			}
		case r := <-s.info:
			r.Resp <- s.Info()
		}
	}
}

// Info reports the session state on the calling goroutine.
func (s *Session) Info() Info {
	in := Info{Templates: s.prof.TemplateIDs(), CurrentTemplate: s.prof.CurTemplate}
	if s.cur != nil {
		in.CurrentBuilding = s.cur.ID()
	}
	return in
}

// RequestInfo asks the Run loop for Info. It is safe to call from other
// goroutines.
func (s *Session) RequestInfo(ctx context.Context) (Info, error) {
	resp := make(chan Info, 1)
	select {
	case s.info <- infoReq{Resp: resp}:
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
	select {
	case in := <-resp:
		return in, nil
	case <-ctx.Done():
		return Info{}, ctx.Err()
	}
}

// Submit queues msg for the Run loop and waits for its result. A full inbox
// is answered with E_BUSY immediately.
func (s *Session) Submit(ctx context.Context, msg protocol.CmdMsg) (protocol.ResultMsg, error) {
	resp := make(chan protocol.ResultMsg, 1)
	select {
	case s.inbox <- cmdReq{Msg: msg, Resp: resp}:
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	default:
		return failure(msg.CmdID, protocol.ErrBusy, "editor busy"), nil
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
}

func (s *Session) template() (*templates.BuildingTemplate, error) {
	bt := s.prof.CurrentTemplate()
	if bt == nil {
		return nil, ErrNoTemplate
	}
	return bt, nil
}

func (s *Session) open() (*building.Building, *templates.BuildingTemplate, error) {
	if s.cur == nil {
		return nil, nil, ErrNoBuilding
	}
	bt, err := s.template()
	if err != nil {
		return nil, nil, err
	}
	return s.cur, bt, nil
}

// save writes the open building's metadata onto its root node and into the
// store.
func (s *Session) save() error {
	if s.cur == nil {
		return nil
	}
	blob, err := codec.MarshalBuilding(s.cur)
	if err != nil {
		return err
	}
	if err := s.cur.WriteMetadata(s.gen.Scene(), string(blob)); err != nil {
		return err
	}
	if err := s.store.SaveBuilding(s.cur.ID(), blob); err != nil {
		return fmt.Errorf("save building %s: %w", s.cur.ID(), err)
	}
	return nil
}

func (s *Session) saveProfile() error {
	if err := s.store.Save(s.prof); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *Session) tryLoadCurrent() {
	id := s.prof.CurBuilding
	if id == "" || !s.gen.BuildingExists(id) {
		return
	}
	b, err := s.readSceneMetadata(id)
	if err != nil {
		s.log.Warn("current building metadata unreadable", "building", id, "err", err)
		return
	}
	if b != nil {
		s.cur = b
	}
}

// readSceneMetadata returns nil when id carries no metadata.
func (s *Session) readSceneMetadata(id string) (*building.Building, error) {
	scene := s.gen.Scene()
	if !scene.HasAttribute(id, building.MetadataKey) {
		return nil, nil
	}
	raw, _, err := scene.ReadAttribute(id, building.MetadataKey)
	if err != nil {
		return nil, err
	}
	return codec.UnmarshalBuilding([]byte(raw))
}
