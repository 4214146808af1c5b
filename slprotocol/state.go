package slprotocol

import (
	"maps"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// UpdateFunc receives a copy of the full snapshot after every applied
// message.
type UpdateFunc func(Snapshot)

// Snapshot is the driver's view of the processor's current status.
//
// Status values are kept exactly as the device reports them; an empty string
// means the value has not been reported. Keys without a dedicated field land
// in Extra.
type Snapshot struct {
	Model     string `json:"model,omitempty"`
	Power     string `json:"power,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Mute      string `json:"mute,omitempty"`
	Source    string `json:"source,omitempty"`
	AudioMode string `json:"audioMode,omitempty"`
	AudioType string `json:"audioType,omitempty"`
	VideoType string `json:"videoType,omitempty"`
	Voicing   string `json:"voicing,omitempty"`

	Sources    []string `json:"sources"`
	AudioModes []string `json:"audioModes"`
	Voicings   []string `json:"voicings"`

	Extra map[string]string `json:"extra,omitempty"`
}

// field returns a pointer to the dedicated field for a status key, or nil.
func (s *Snapshot) field(key string) *string {
	switch key {
	case MethodDevice:
		return &s.Model
	case MethodPower:
		return &s.Power
	case MethodVolume:
		return &s.Volume
	case MethodMute:
		return &s.Mute
	case MethodSource:
		return &s.Source
	case MethodAudioMode:
		return &s.AudioMode
	case MethodAudioType:
		return &s.AudioType
	case MethodVideoType:
		return &s.VideoType
	case MethodVoicing:
		return &s.Voicing
	default:
		return nil
	}
}

func (s *Snapshot) set(key, value string) {
	if f := s.field(key); f != nil {
		*f = value
		return
	}
	if s.Extra == nil {
		s.Extra = make(map[string]string)
	}
	s.Extra[key] = value
}

// Value returns the raw value stored for a status key.
func (s Snapshot) Value(key string) (string, bool) {
	if f := s.field(key); f != nil {
		return *f, *f != ""
	}
	v, ok := s.Extra[key]
	return v, ok
}

// statusKeys lists the keys with dedicated Snapshot fields.
var statusKeys = []string{
	MethodDevice, MethodPower, MethodVolume, MethodMute, MethodSource,
	MethodAudioMode, MethodAudioType, MethodVideoType, MethodVoicing,
}

// Map returns every reported status value keyed by method name, the
// dedicated fields together with Extra.
func (s Snapshot) Map() map[string]string {
	m := maps.Clone(s.Extra)
	if m == nil {
		m = make(map[string]string)
	}
	for _, key := range statusKeys {
		if v, ok := s.Value(key); ok {
			m[key] = v
		}
	}
	return m
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Sources = slices.Clone(s.Sources)
	c.AudioModes = slices.Clone(s.AudioModes)
	c.Voicings = slices.Clone(s.Voicings)
	c.Extra = maps.Clone(s.Extra)
	return c
}

// IsOn reports whether the main zone is powered on.
func (s Snapshot) IsOn() bool {
	return s.Power == "1"
}

// IsMuted reports whether the output is muted.
func (s Snapshot) IsMuted() bool {
	return s.Mute == MethodMuteOn
}

// VolumeLevel returns the volume as a level in [0.0, 1.0].
func (s Snapshot) VolumeLevel() (float64, bool) {
	if s.Volume == "" {
		return 0, false
	}
	return DecodeVolume(s.Volume)
}

// SourceName returns the label of the current source.
func (s Snapshot) SourceName() (string, bool) {
	return entry(s.Sources, s.Source)
}

// VoicingName returns the label of the current voicing.
func (s Snapshot) VoicingName() (string, bool) {
	return entry(s.Voicings, s.Voicing)
}

// AudioModeName returns the label of the current audio processing mode.
func (s Snapshot) AudioModeName() (string, bool) {
	return entry(s.AudioModes, s.AudioMode)
}

// List returns the enumerated list of the given kind.
func (s Snapshot) List(kind ListKind) []string {
	switch kind {
	case ListSources:
		return s.Sources
	case ListAudioModes:
		return s.AudioModes
	case ListVoicings:
		return s.Voicings
	default:
		return nil
	}
}

func entry(list []string, index string) (string, bool) {
	i, err := strconv.Atoi(index)
	if err != nil || i < 0 || i >= len(list) || list[i] == "" {
		return "", false
	}
	return list[i], true
}

// Phase is the reducer's position in the session lifecycle.
type Phase int

const (
	// PhaseDiscovering collects the enumerated lists. Only count, indexed
	// and mute messages are applied.
	PhaseDiscovering Phase = iota
	// PhaseSteady applies every message as a direct key overwrite.
	PhaseSteady
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDiscovering:
		return "discovering"
	case PhaseSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// Reducer folds decoded messages into a Snapshot.
//
// A Reducer is not safe for concurrent use. Device confines it to a single
// goroutine.
type Reducer struct {
	phase      Phase
	snap       Snapshot
	ready      chan struct{}
	subscriber UpdateFunc
	log        *zap.Logger
}

// NewReducer creates a reducer in the discovery phase.
func NewReducer(log *zap.Logger) *Reducer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reducer{
		ready: make(chan struct{}),
		log:   log,
	}
}

// Phase returns the current phase.
func (r *Reducer) Phase() Phase {
	return r.phase
}

// Ready returns a channel that is closed when discovery completes.
func (r *Reducer) Ready() <-chan struct{} {
	return r.ready
}

// Subscribe registers the function notified after every applied message.
// Passing nil removes the subscriber.
func (r *Reducer) Subscribe(fn UpdateFunc) {
	r.subscriber = fn
}

// Snapshot returns a copy of the current state.
func (r *Reducer) Snapshot() Snapshot {
	return r.snap.Clone()
}

// Reset discards all state and returns to the discovery phase. The
// subscriber is dropped; the next session registers it again.
func (r *Reducer) Reset() {
	r.phase = PhaseDiscovering
	r.snap = Snapshot{}
	r.ready = make(chan struct{})
	r.subscriber = nil
}

// Rediscover returns to the discovery phase within the current session. It
// is Reset keeping the model reported by the session's identification reply.
func (r *Reducer) Rediscover() {
	model := r.snap.Model
	r.Reset()
	r.snap.Model = model
}

// Apply folds one message into the snapshot and notifies the subscriber if
// the message changed anything.
func (r *Reducer) Apply(msg Message) {
	method, data := msg.Method, msg.Data
	if method == MethodMuteOn || method == MethodMuteOff {
		method, data = MethodMute, method
	}

	switch r.phase {
	case PhaseDiscovering:
		if !r.discover(method, data, msg.Extra) {
			return
		}
	case PhaseSteady:
		r.snap.set(method, data)
	}

	if r.subscriber != nil {
		r.subscriber(r.snap.Clone())
	}
}

// discover applies a discovery-phase message and reports whether it was
// used.
func (r *Reducer) discover(method, data, extra string) bool {
	switch method {
	case MethodSourceCount:
		return r.allocate(&r.snap.Sources, method, data)
	case MethodAudioModeCount:
		return r.allocate(&r.snap.AudioModes, method, data)
	case MethodVoicingCount:
		return r.allocate(&r.snap.Voicings, method, data)
	case MethodSource:
		return r.fill(r.snap.Sources, method, data, extra)
	case MethodAudioMode:
		return r.fill(r.snap.AudioModes, method, data, extra)
	case MethodVoicing:
		return r.fill(r.snap.Voicings, method, data, extra)
	case MethodDevice:
		r.snap.Model = data
	case MethodMute:
		r.snap.Mute = data
		r.phase = PhaseSteady
		close(r.ready)
		r.log.Debug("init sequence complete",
			zap.Int("sources", len(r.snap.Sources)),
			zap.Int("audioModes", len(r.snap.AudioModes)),
			zap.Int("voicings", len(r.snap.Voicings)))
	default:
		return false
	}
	return true
}

func (r *Reducer) allocate(list *[]string, method, data string) bool {
	n, err := strconv.Atoi(data)
	if err != nil || n < 0 {
		r.log.Warn("invalid count", zap.String("method", method), zap.String("data", data))
		return false
	}
	*list = make([]string, n)
	return true
}

func (r *Reducer) fill(list []string, method, data, extra string) bool {
	i, err := strconv.Atoi(data)
	if err != nil || i < 0 || i >= len(list) {
		r.log.Warn("index outside announced count",
			zap.String("method", method), zap.String("data", data), zap.Int("count", len(list)))
		return false
	}
	list[i] = extra
	return true
}
