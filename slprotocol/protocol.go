// Package slprotocol implements the line-based control protocol spoken by
// Steinway Lyngdorf audio/video processors over TCP.
//
// Protocol Format:
//
//	Query (Client -> Device):      !METHOD?\r
//	Command (Client -> Device):    !METHOD\r  or  !METHOD(DATA)\r
//	Reply / Notification:          !METHOD  |  !METHOD(DATA)  |  !METHOD(DATA)"EXTRA"
//
// Example Session:
//
//	CLI: !DEVICE?
//	DEV: !DEVICE(P200)
//	CLI: !SRCS?
//	DEV: !SRCCOUNT(2)
//	DEV: !SRC(0)"Blu-ray"
//	DEV: !SRC(1)"Streamer"
//	CLI: !VOL(-350)
//	DEV: !VOL(-350)
package slprotocol

import "time"

// Protocol constants.
const (
	// Prefix starts every line in both directions.
	Prefix = "!"

	// QuerySuffix turns a method into a status query.
	QuerySuffix = "?"

	// LineTerminator ends every line in both directions. There is no
	// trailing newline.
	LineTerminator = '\r'

	// DefaultPort is the fixed TCP control port of the processor.
	DefaultPort = 84

	// ConnectTimeout bounds the TCP dial.
	ConnectTimeout = 20 * time.Second

	// LoginTimeout bounds the identification reply and the wait for the
	// discovery barrier.
	LoginTimeout = 5 * time.Second

	// MaxLineLength is the longest line the reader accepts before the
	// connection is considered broken.
	MaxLineLength = 4096
)

// Method names used by the driver.
const (
	MethodAudioMode      = "AUDMODE"
	MethodAudioModes     = "AUDMODEL"
	MethodAudioModeCount = "AUDMODECOUNT"
	MethodAudioType      = "AUDTYPE"
	MethodDevice         = "DEVICE"
	MethodMute           = "MUTE"
	MethodMuteOff        = "MUTEOFF"
	MethodMuteOn         = "MUTEON"
	MethodPower          = "POWER"
	MethodPowerOn        = "POWERONMAIN"
	MethodPowerOff       = "POWEROFFMAIN"
	MethodSource         = "SRC"
	MethodSources        = "SRCS"
	MethodSourceCount    = "SRCCOUNT"
	MethodVideoType      = "VIDTYPE"
	MethodVoicing        = "RPVOI"
	MethodVoicings       = "RPVOIS"
	MethodVoicingCount   = "RPVOICOUNT"
	MethodVolume         = "VOL"
	MethodVerbose        = "VERB"
)

// DiscoveryQueries are issued, in order, when a session starts. The mute
// query goes last: its reply marks the end of discovery.
var DiscoveryQueries = []string{
	MethodSources,
	MethodAudioModes,
	MethodVoicings,
	MethodMute,
}

// StatusQueries seed the snapshot once discovery has finished.
var StatusQueries = []string{
	MethodAudioMode,
	MethodAudioType,
	MethodMute,
	MethodPower,
	MethodSource,
	MethodVideoType,
	MethodVoicing,
	MethodVolume,
}
