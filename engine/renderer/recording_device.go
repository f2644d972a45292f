package renderer

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
)

// CommandOp names a recorded device call.
type CommandOp string

const (
	OpBeginFrame   CommandOp = "begin"
	OpPass         CommandOp = "pass"
	OpFence        CommandOp = "fence"
	OpEndFrame     CommandOp = "end"
	OpPresent      CommandOp = "present"
	OpWriteTexture CommandOp = "write_texture"
)

// Command is one recorded device call.
type Command struct {
	// Op is the call.
	Op CommandOp

	// Frame is the frame counter at the time of the call, starting at 1.
	Frame int

	// Pass is the camera name for pass commands, or the texture label for texture writes.
	Pass string

	// Items is the number of draw items in a pass.
	Items int
}

// recordingDevice is a Device that keeps a log of its calls instead of drawing. Textures it creates
// carry no native resource.
type recordingDevice struct {
	mu *sync.Mutex

	width, height int
	frame         int
	inFrame       bool

	commands []Command
	textures []texture.Texture
	globals  SceneGlobals
	shaders  shader.Library
	maxLog   int
}

// RecordingDevice is a headless Device that records what it was asked to do.
type RecordingDevice interface {
	Device

	// Commands returns a copy of the recorded commands.
	Commands() []Command

	// FrameCommands returns the commands recorded during one frame.
	//
	// Parameters:
	//   - frame: the frame number, starting at 1
	//
	// Returns:
	//   - []Command: the commands of that frame, in order
	FrameCommands(frame int) []Command

	// Frames returns the number of frames begun.
	Frames() int

	// Textures returns every texture created on the device.
	Textures() []texture.Texture

	// Globals returns the most recent scene globals.
	Globals() SceneGlobals

	// Reset clears the command log.
	Reset()
}

var _ RecordingDevice = &recordingDevice{}

// NewRecordingDevice creates a headless device with a screen of the given size.
//
// Parameters:
//   - width, height: the screen size in pixels
//
// Returns:
//   - RecordingDevice: the device
func NewRecordingDevice(width, height int) RecordingDevice {
	return &recordingDevice{
		mu:     &sync.Mutex{},
		width:  width,
		height: height,
		maxLog: 1 << 16,
	}
}

// record appends a command. The log is trimmed to its newest half when it grows past maxLog so
// long headless runs stay bounded. Caller must hold the mutex.
func (d *recordingDevice) record(c Command) {
	c.Frame = d.frame
	d.commands = append(d.commands, c)
	if len(d.commands) > d.maxLog {
		d.commands = slices.Clone(d.commands[len(d.commands)/2:])
	}
}

func (d *recordingDevice) CreateTexture(desc texture.Descriptor) (texture.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	t := texture.New(desc, nil, nil)
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *recordingDevice) WriteTexture(t texture.Texture, pixels []byte) error {
	desc := t.Descriptor()
	if want := int(desc.Width * desc.Height * 4); len(pixels) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", desc.Label, want, len(pixels))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(Command{Op: OpWriteTexture, Pass: desc.Label})
	return nil
}

func (d *recordingDevice) PrepareShaders(lib shader.Library) error {
	if err := lib.Require(shader.ShaderDepth, shader.ShaderForward, shader.ShaderComposite, shader.ShaderHUDDepth); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shaders = lib
	return nil
}

func (d *recordingDevice) SetSceneGlobals(g SceneGlobals) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.globals = g
}

func (d *recordingDevice) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.inFrame {
		return ErrFrameInProgress
	}
	d.inFrame = true
	d.frame++
	d.record(Command{Op: OpBeginFrame})
	return nil
}

func (d *recordingDevice) ExecutePass(pass Pass) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inFrame {
		return ErrNoFrame
	}
	d.record(Command{Op: OpPass, Pass: pass.Camera.Name(), Items: len(pass.Items)})
	return nil
}

func (d *recordingDevice) Fence() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inFrame {
		return ErrNoFrame
	}
	d.record(Command{Op: OpFence})
	return nil
}

func (d *recordingDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.inFrame {
		return ErrNoFrame
	}
	d.inFrame = false
	d.record(Command{Op: OpEndFrame})
	return nil
}

func (d *recordingDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(Command{Op: OpPresent})
}

func (d *recordingDevice) Resize(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.width, d.height = width, height
	common.Logger().Debug("headless device resized", "width", width, "height", height)
}

func (d *recordingDevice) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *recordingDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.textures {
		t.Release()
	}
	d.textures = nil
}

func (d *recordingDevice) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.commands)
}

func (d *recordingDevice) FrameCommands(frame int) []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Command
	for _, c := range d.commands {
		if c.Frame == frame {
			out = append(out, c)
		}
	}
	return out
}

func (d *recordingDevice) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

func (d *recordingDevice) Textures() []texture.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.textures)
}

func (d *recordingDevice) Globals() SceneGlobals {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.globals
}

func (d *recordingDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = nil
}
