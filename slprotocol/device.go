package slprotocol

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// inboxSize buffers inbound messages so the reader rarely waits on the
// state goroutine.
const inboxSize = 64

// Device is a processor handle: a Client plus the state it reports.
//
// All state lives in a Reducer owned by one goroutine. Inbound messages,
// session resets and reads are queued on a single inbox and run in order, so
// a reset from a dropped session is always applied before anything from the
// next one.
type Device struct {
	client       *Client
	log          *zap.Logger
	loginTimeout time.Duration

	inbox chan func(*Reducer)
	done  chan struct{}
	exit  chan struct{}

	closeOnce sync.Once

	mu         sync.Mutex
	subscriber UpdateFunc
}

// NewDevice creates a device handle. No connection is made until Init,
// Connect or the first command.
func NewDevice(cfg Config) *Device {
	cfg = cfg.withDefaults()
	d := &Device{
		client:       NewClient(cfg),
		log:          cfg.Logger.With(zap.String("host", cfg.Host)),
		loginTimeout: cfg.LoginTimeout,
		inbox:        make(chan func(*Reducer), inboxSize),
		done:         make(chan struct{}),
		exit:         make(chan struct{}),
	}

	state := NewReducer(d.log)
	d.client.SetMessageHandler(func(msg Message) {
		d.post(func(r *Reducer) { r.Apply(msg) })
	})
	d.client.SetDisconnectHandler(func(err error) {
		d.post(func(r *Reducer) { r.Reset() })
	})

	go d.run(state)
	return d
}

// run owns the reducer until Close.
func (d *Device) run(state *Reducer) {
	defer close(d.exit)
	for {
		select {
		case fn := <-d.inbox:
			fn(state)
		case <-d.done:
			return
		}
	}
}

// post queues fn on the state goroutine without waiting for it to run.
func (d *Device) post(fn func(*Reducer)) bool {
	select {
	case d.inbox <- fn:
		return true
	case <-d.done:
		return false
	}
}

// call runs fn on the state goroutine and waits for it to finish.
func (d *Device) call(fn func(*Reducer)) error {
	finished := make(chan struct{})
	if !d.post(func(r *Reducer) {
		defer close(finished)
		fn(r)
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-d.exit:
		return ErrClosed
	}
}

func (d *Device) closed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Client returns the underlying connection.
func (d *Device) Client() *Client {
	return d.client
}

// DeviceID returns "<model>_<host>" once the device has been identified.
func (d *Device) DeviceID() string {
	return d.client.DeviceID()
}

// Model returns the model reported during the handshake.
func (d *Device) Model() string {
	return d.client.Model()
}

// Online reports whether a session is open.
func (d *Device) Online() bool {
	return d.client.IsOnline()
}

// Connect opens a session without running discovery.
func (d *Device) Connect(ctx context.Context) error {
	return d.client.Connect(ctx)
}

// Probe checks that the host answers the handshake, without side effects.
func (d *Device) Probe(ctx context.Context) (Identity, error) {
	return d.client.Probe(ctx)
}

// Init connects if needed and runs the startup handshake: it enumerates the
// source, audio-mode and voicing lists, waits for discovery to finish,
// registers fn, seeds the status fields and enables verbose mode. fn is
// called on the state goroutine after every applied message and must not
// call back into the Device.
func (d *Device) Init(ctx context.Context, fn UpdateFunc) (Snapshot, error) {
	if d.closed() {
		return Snapshot{}, ErrClosed
	}
	if err := d.client.Connect(ctx); err != nil {
		return Snapshot{}, err
	}

	// A steady session is rediscovered from scratch so the replies below
	// fill fresh lists instead of overwriting status keys.
	var ready <-chan struct{}
	if err := d.call(func(r *Reducer) {
		if r.Phase() == PhaseSteady {
			r.Rediscover()
		}
		ready = r.Ready()
	}); err != nil {
		return Snapshot{}, err
	}

	for _, method := range DiscoveryQueries {
		if err := d.client.Send(ctx, NewQueryCommand(method)); err != nil {
			return Snapshot{}, err
		}
	}

	timer := time.NewTimer(d.loginTimeout)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
		d.log.Error("init sequence timed out", zap.Duration("timeout", d.loginTimeout))
		return Snapshot{}, ErrInitTimeout
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-d.done:
		return Snapshot{}, ErrClosed
	}

	var snap Snapshot
	if err := d.call(func(r *Reducer) {
		r.Subscribe(fn)
		snap = r.Snapshot()
	}); err != nil {
		return Snapshot{}, err
	}

	d.mu.Lock()
	d.subscriber = fn
	d.mu.Unlock()

	for _, method := range StatusQueries {
		if err := d.client.Send(ctx, NewQueryCommand(method)); err != nil {
			return snap, err
		}
	}
	if err := d.client.Send(ctx, NewVerboseCommand(true)); err != nil {
		return snap, err
	}
	return snap, nil
}

// Update is the periodic refresh hook. The device pushes its own status, so
// nothing is polled; if the session was lost, Update reconnects and repeats
// Init with the last registered subscriber. A session reopened by a command
// comes back without discovery, so Update also runs Init when the state is
// still discovering.
func (d *Device) Update(ctx context.Context) error {
	if d.client.IsOnline() && d.Phase() == PhaseSteady {
		return nil
	}

	d.mu.Lock()
	fn := d.subscriber
	d.mu.Unlock()

	d.log.Info("reconnecting")
	_, err := d.Init(ctx, fn)
	return err
}

// Close ends the session and stops the state goroutine.
func (d *Device) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.client.Close()
		close(d.done)
		<-d.exit
	})
	return err
}

// Snapshot returns a copy of the current state. After Close it returns the
// zero Snapshot.
func (d *Device) Snapshot() Snapshot {
	var snap Snapshot
	d.call(func(r *Reducer) { snap = r.Snapshot() })
	return snap
}

// Phase returns the reducer's current phase.
func (d *Device) Phase() Phase {
	var p Phase
	d.call(func(r *Reducer) { p = r.Phase() })
	return p
}

// IsOn reports whether the main zone is powered on.
func (d *Device) IsOn() bool {
	return d.Snapshot().IsOn()
}

// VolumeLevel returns the volume in [0.0, 1.0], if known.
func (d *Device) VolumeLevel() (float64, bool) {
	return d.Snapshot().VolumeLevel()
}

// IsMuted reports whether the output is muted.
func (d *Device) IsMuted() bool {
	return d.Snapshot().IsMuted()
}

// Source returns the current source label.
func (d *Device) Source() (string, bool) {
	return d.Snapshot().SourceName()
}

// SourceList returns the available sources.
func (d *Device) SourceList() []string {
	return d.Snapshot().Sources
}

// SoundMode returns the current voicing label.
func (d *Device) SoundMode() (string, bool) {
	return d.Snapshot().VoicingName()
}

// SoundModeList returns the available voicings.
func (d *Device) SoundModeList() []string {
	return d.Snapshot().Voicings
}

// AudioMode returns the current audio processing mode label.
func (d *Device) AudioMode() (string, bool) {
	return d.Snapshot().AudioModeName()
}

// AudioModeList returns the available audio processing modes.
func (d *Device) AudioModeList() []string {
	return d.Snapshot().AudioModes
}

// TurnOn powers on the main zone.
func (d *Device) TurnOn(ctx context.Context) error {
	return d.client.Send(ctx, NewPowerOnCommand())
}

// TurnOff puts the main zone in standby.
func (d *Device) TurnOff(ctx context.Context) error {
	return d.client.Send(ctx, NewPowerOffCommand())
}

// Mute mutes or unmutes the output.
func (d *Device) Mute(ctx context.Context, mute bool) error {
	return d.client.Send(ctx, NewMuteCommand(mute))
}

// SetVolume sets the volume to a level in [0.0, 1.0].
func (d *Device) SetVolume(ctx context.Context, level float64) error {
	cmd, err := NewVolumeCommand(level)
	if err != nil {
		return err
	}
	return d.client.Send(ctx, cmd)
}

// VolumeUp raises the volume by VolumeStep. It does nothing while the
// volume is unknown.
func (d *Device) VolumeUp(ctx context.Context) error {
	return d.stepVolume(ctx, VolumeStep)
}

// VolumeDown lowers the volume by VolumeStep. It does nothing while the
// volume is unknown.
func (d *Device) VolumeDown(ctx context.Context) error {
	return d.stepVolume(ctx, -VolumeStep)
}

func (d *Device) stepVolume(ctx context.Context, delta float64) error {
	level, ok := d.VolumeLevel()
	if !ok {
		return nil
	}
	return d.SetVolume(ctx, StepVolume(level, delta))
}

// SelectSource switches to the source with the given label.
func (d *Device) SelectSource(ctx context.Context, label string) error {
	return d.selectEntry(ctx, ListSources, label, NewSourceCommand)
}

// SelectSoundMode switches to the voicing with the given label.
func (d *Device) SelectSoundMode(ctx context.Context, label string) error {
	return d.selectEntry(ctx, ListVoicings, label, NewVoicingCommand)
}

// SelectAudioMode switches to the audio processing mode with the given label.
func (d *Device) SelectAudioMode(ctx context.Context, label string) error {
	return d.selectEntry(ctx, ListAudioModes, label, NewAudioModeCommand)
}

func (d *Device) selectEntry(ctx context.Context, kind ListKind, label string, command func(int) Command) error {
	i := -1
	if label != "" {
		i = slices.Index(d.Snapshot().List(kind), label)
	}
	if i < 0 {
		return &LookupError{List: kind, Label: label}
	}
	return d.client.Send(ctx, command(i))
}

// Query asks the device to report a status key. The answer arrives through
// the subscriber like any other update.
func (d *Device) Query(ctx context.Context, method string) error {
	return d.client.Send(ctx, NewQueryCommand(method))
}
