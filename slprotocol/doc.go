// Package slprotocol is a client-side driver for Steinway Lyngdorf
// processors (P100, P200, P300 and the SP series).
//
// # Protocol Overview
//
// The processor listens on TCP port 84 and speaks an ASCII, line-oriented
// protocol. Every line starts with '!' and ends with a carriage return.
// Clients send queries (!VOL?) and commands (!VOL(-350)); the device answers
// with status lines and, once verbose mode is enabled, pushes unsolicited
// notifications whenever something changes on the front panel or remote.
//
// # Basic Usage
//
//	dev := slprotocol.NewDevice(slprotocol.Config{Host: "192.168.1.40"})
//	defer dev.Close()
//
//	snap, err := dev.Init(ctx, func(s slprotocol.Snapshot) {
//	    fmt.Println("volume now", s.Volume)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("sources:", snap.Sources)
//
//	if err := dev.SelectSource(ctx, "Streamer"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Session Startup
//
// Init runs a two-phase handshake. First the source, audio-mode and voicing
// lists are enumerated: the device replies with a count line followed by
// one indexed line per entry. The mute status is queried last, and its reply
// marks the end of discovery. After that every inbound line overwrites the
// matching field of the Snapshot and the subscriber is notified.
//
// # Thread Safety
//
// Device is safe for concurrent use. Its state is owned by a single
// goroutine; accessors and the subscriber see consistent copies.
//
// Reconnection is the caller's job: Update reconnects and repeats the
// handshake if the connection was lost.
package slprotocol
