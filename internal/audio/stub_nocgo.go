//go:build !cgo

package audio

import (
	"errors"
	"io"
)

var errCGORequired = errors.New(`voicebus requires CGO support for device audio output.

To fix this issue:
1. Ensure CGO_ENABLED=1 (this is the default for native builds)
2. Install a C compiler:
   - Linux: sudo apt-get install build-essential
   - macOS: xcode-select --install
   - Windows: Install MinGW or Visual Studio Build Tools
3. Then run: go install voicebus.click/cmd/voicebus

The "null" backend works without CGO.`)

const cgoEnabled = false

// MalgoBackend is unavailable without cgo
type MalgoBackend struct{}

func NewMalgoBackend() *MalgoBackend { return &MalgoBackend{} }

func (mb *MalgoBackend) Name() string { return "malgo" }

func (mb *MalgoBackend) Start(src io.Reader, sampleRate int) error { return errCGORequired }

func (mb *MalgoBackend) Close() error { return nil }

// OtoBackend is unavailable without cgo
type OtoBackend struct{}

func NewOtoBackend() *OtoBackend { return &OtoBackend{} }

func (ob *OtoBackend) Name() string { return "oto" }

func (ob *OtoBackend) Start(src io.Reader, sampleRate int) error { return errCGORequired }

func (ob *OtoBackend) Close() error { return nil }
