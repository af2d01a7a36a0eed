// Package engine hosts the split controllers behind one serialised entry
// point, fans their decisions out to the registered sinks and publishes an
// immutable status snapshot after every tick.
package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/host"
	"splitguard/internal/khanda"
	"splitguard/internal/tranquil"
)

// DefaultRingSize is how many recent decisions the engine keeps in memory.
const DefaultRingSize = 200

// Reset reasons.
const (
	ReasonGameEnded  = "game_ended"
	ReasonDisconnect = "disconnect"
	ReasonOperator   = "operator"
	ReasonUnplayable = "not_playable"
)

// Controller is one split controller.
type Controller interface {
	Name() string
	Handle(h host.Host, ev host.Event)
	Reset()
}

// Settings supplies both controllers' live settings.
type Settings interface {
	tranquil.SettingsSource
	khanda.SettingsSource
}

// Options configures an Engine.
type Options struct {
	Settings        Settings
	TranquilTimings config.TranquilTimings
	KhandaTimings   config.KhandaTimings
	Logger          *logrus.Logger
	Rand            *rand.Rand
	RingSize        int
}

// DefaultOptions returns options backed by store with the tuned timings.
func DefaultOptions(store Settings) Options {
	return Options{
		Settings:        store,
		TranquilTimings: config.DefaultTranquilTimings(),
		KhandaTimings:   config.DefaultKhandaTimings(),
	}
}

// Engine owns both controllers. All methods are safe for concurrent use.
type Engine struct {
	mu          sync.Mutex
	settings    Settings
	tranquil    *tranquil.Controller
	khanda      *khanda.Controller
	controllers []Controller

	sinks    decision.Fanout
	ring     *decision.Ring
	eventLog *EventLog
	status   statusBoard
	log      *logrus.Entry

	frame     uint64
	gameTime  float64
	inSession bool
}

// New creates an engine. Controllers run in fixed order: Tranquil Boots, then
// Khanda.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.RingSize <= 0 {
		opts.RingSize = DefaultRingSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		settings: opts.Settings,
		ring:     decision.NewRing(opts.RingSize),
		eventLog: NewEventLog(),
		log:      logrus.NewEntry(opts.Logger).WithField("component", "engine"),
	}

	sink := decision.SinkFunc(e.emit)
	base := logrus.NewEntry(opts.Logger)
	e.tranquil = tranquil.New(opts.Settings, opts.TranquilTimings, tranquil.Options{
		Sink:   sink,
		Logger: base,
		Rand:   opts.Rand,
	})
	e.khanda = khanda.New(opts.Settings, opts.KhandaTimings, khanda.Options{
		Sink:   sink,
		Logger: base,
		Rand:   opts.Rand,
	})
	e.controllers = []Controller{e.tranquil, e.khanda}

	e.publishLocked()
	return e
}

// StartEventLog begins writing the JSONL event log to path.
func (e *Engine) StartEventLog(path string) error {
	return e.eventLog.Start(path)
}

// Close flushes the event log.
func (e *Engine) Close() {
	e.eventLog.Stop()
}

// AddSink registers a decision consumer. Sinks are called with the engine
// lock held and must not block.
func (e *Engine) AddSink(s decision.Sink) {
	e.sinks.Add(s)
}

// Handle processes one event to completion in every controller.
func (e *Engine) Handle(h host.Host, ev host.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handleLocked(h, ev)
}

// Frame runs one host frame: every event in order against state, then
// returns the commands the controllers issued.
func (e *Engine) Frame(state *host.State, events []host.Event) []host.Command {
	var buf host.CommandBuffer
	h := host.Bind(state, &buf)

	e.mu.Lock()
	for _, ev := range events {
		e.handleLocked(h, ev)
	}
	e.mu.Unlock()

	return buf.Drain()
}

func (e *Engine) handleLocked(h host.Host, ev host.Event) {
	start := time.Now()
	if tick, ok := ev.(host.Tick); ok {
		// A tick that advances no time is not a frame.
		if tick.DT <= 0 {
			return
		}
		e.gameTime = h.Clock().Now
		switch playable := h.Session().Playable(); {
		case playable && !e.inSession:
			e.startSessionLocked()
		case !playable && e.inSession:
			e.endSessionLocked(ReasonUnplayable)
		}
	}

	for _, c := range e.controllers {
		c.Handle(h, ev)
	}

	switch ev.(type) {
	case host.GameEnded:
		e.endSessionLocked(ReasonGameEnded)
		e.publishLocked()
	case host.Tick:
		e.frame++
		RecordTick(time.Since(start))
		e.publishLocked()
	}
}

// Reset fully resets both controllers, as on loss of control of the actor.
func (e *Engine) Reset(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, c := range e.controllers {
		c.Reset()
	}
	e.endSessionLocked(reason)
	e.publishLocked()
	e.log.WithField("reason", reason).Info("controllers reset")
}

func (e *Engine) startSessionLocked() {
	e.inSession = true
	e.emit(decision.Record{
		At:         time.Now(),
		GameTime:   e.gameTime,
		Controller: decision.Engine,
		Action:     decision.ActionSessionStart,
		Cause:      decision.CauseSession,
	})
}

func (e *Engine) endSessionLocked(reason string) {
	RecordReset(reason)
	if !e.inSession {
		return
	}
	e.inSession = false
	e.emit(decision.Record{
		At:         time.Now(),
		GameTime:   e.gameTime,
		Controller: decision.Engine,
		Action:     decision.ActionReset,
		Cause:      decision.CauseSession,
		Reason:     reason,
	})
}

// emit is the sink handed to both controllers.
func (e *Engine) emit(rec decision.Record) {
	if rec.Controller != decision.Engine {
		RecordCommand(rec)
	}
	e.ring.Record(rec)
	e.eventLog.Emit(DecisionEvent(e.frame, rec))
	e.sinks.Record(rec)
}

func (e *Engine) publishLocked() {
	st := e.status.publish(Status{
		Frame:           e.frame,
		GameTime:        e.gameTime,
		InSession:       e.inSession,
		TranquilEnabled: e.settings.Tranquil().Enabled,
		KhandaEnabled:   e.settings.Khanda().Enabled,
		Tranquil:        e.tranquil.Status(),
		Khanda:          e.khanda.Status(),
		EventLog:        e.eventLog.Stats(),
	})
	updateGauges(st)
}

// Status returns the latest published snapshot.
func (e *Engine) Status() *Status {
	return e.status.load()
}

// Decisions returns up to n recent decisions, newest first.
func (e *Engine) Decisions(n int) []decision.Record {
	return e.ring.Recent(n)
}
