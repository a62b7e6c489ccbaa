// Package udi is the debuggee-side embedding API for the userland
// debugger interface runtime: a small set of re-exports over
// internal/lifecycle, shaped the way the teacher's ublk package exposes
// Device/DefaultParams/CreateAndServe as its single public surface.
package udi

import "github.com/behrlich/udi-agent/internal/lifecycle"

// Process is the attached runtime handle returned by Init.
type Process = lifecycle.Process

// Thread is a tracked debuggee thread, passed to NewThread's callback.
type Thread = lifecycle.Thread

// Config configures Init. See lifecycle.Config for field documentation.
type Config = lifecycle.Config

// Init attaches the runtime: it creates the process's filesystem layout
// under Config.RootDir (or UDI_ROOT_DIR, or the package default), blocks
// until a debugger opens the request channel and sends its init request,
// and completes the handshake before returning.
//
// Example:
//
//	proc, err := udi.Init(&udi.Config{Arch: wire.ArchX86_64})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer proc.Exit(0)
func Init(cfg *Config) (*Process, error) {
	return lifecycle.Init(cfg)
}
