// Package scene implements the SourceSet and VisibilityPolicy
// components (spec.md §3, §4.3, §9). Source polymorphism is a sum type
// over a small variant set; each variant carries only the attributes
// spec.md names for it, and the engine owns the actual scene-item
// handle (§9: "the currently visible source is a non-owning
// back-reference implemented as an index (or tag), never a pointer").
package scene

import "github.com/overwolf-labs/obscore/internal/engine"

// Kind mirrors engine.SourceKind but stays in this package's vocabulary
// so callers outside engine don't need to import it for routing.
type Kind = engine.SourceKind

const (
	KindGame    = engine.SourceGame
	KindMonitor = engine.SourceMonitor
	KindWindow  = engine.SourceWindow
	KindBRB     = engine.SourceBRB
	KindGaze    = engine.SourceGaze
	KindImage   = engine.SourceImage
	KindGeneric = engine.SourceGeneric
)

// Source is one capture node in the scene (spec.md §3). Every variant
// implements this; GameSource additionally satisfies GameSource below.
type Source interface {
	Name() string
	Kind() Kind
	Visible() bool
	SetVisible(v bool)
	ZOrder() int
	Handle() engine.SourceHandle
}

// base holds the fields common to every variant.
type base struct {
	name    string
	kind    Kind
	visible bool
	zOrder  int
	handle  engine.SourceHandle
}

func (b *base) Name() string               { return b.name }
func (b *base) Kind() Kind                  { return b.kind }
func (b *base) Visible() bool               { return b.visible }
func (b *base) SetVisible(v bool)           { b.visible = v }
func (b *base) ZOrder() int                 { return b.zOrder }
func (b *base) Handle() engine.SourceHandle { return b.handle }

// GameSource is the subtype of Source with capture-lifecycle state
// (spec.md §3 GameSource).
type GameSource struct {
	base
	ProcessID         int
	Foreground        bool
	CompatibilityMode bool
	DidStartCapture   bool
	FlipType          int
}

func NewGameSource(name string, handle engine.SourceHandle, processID int) *GameSource {
	return &GameSource{base: base{name: name, kind: KindGame, handle: handle}, ProcessID: processID}
}

// MonitorSource mirrors a desktop/monitor capture (spec.md §4.2.4, §4.3).
type MonitorSource struct {
	base
	MonitorID     int
	MonitorHandle int64
	Compatible    bool
}

func NewMonitorSource(name string, handle engine.SourceHandle, monitorID int, monitorHandle int64) *MonitorSource {
	return &MonitorSource{base: base{name: name, kind: KindMonitor, handle: handle}, MonitorID: monitorID, MonitorHandle: monitorHandle}
}

// WindowSource captures a specific top-level window.
type WindowSource struct {
	base
	WindowHandle int64
	Title        string
}

func NewWindowSource(name string, handle engine.SourceHandle, windowHandle int64, title string) *WindowSource {
	return &WindowSource{base: base{name: name, kind: KindWindow, handle: handle}, WindowHandle: windowHandle, Title: title}
}

// BRBSource is the "be-right-back" still-image fallback (spec.md §4.2.1,
// §4.3: visible iff a game source exists, is not foreground, and no
// monitor source exists).
type BRBSource struct {
	base
	ImagePath string
}

func NewBRBSource(name string, handle engine.SourceHandle, imagePath string) *BRBSource {
	return &BRBSource{base: base{name: name, kind: KindBRB, handle: handle}, ImagePath: imagePath}
}

// GazeSource is the tobii gaze overlay (spec.md §4.2.1: deferred until a
// present game source starts capturing).
type GazeSource struct {
	base
}

func NewGazeSource(name string, handle engine.SourceHandle) *GazeSource {
	return &GazeSource{base: base{name: name, kind: KindGaze, handle: handle}}
}

// ImageSource is a generic still image, used when a generic overlay has
// no video of its own.
type ImageSource struct {
	base
	Path string
}

func NewImageSource(name string, handle engine.SourceHandle, path string) *ImageSource {
	return &ImageSource{base: base{name: name, kind: KindImage, handle: handle}, Path: path}
}

// GenericSource is an arbitrary auxiliary source (spec.md §4.2.1
// auxSources).
type GenericSource struct {
	base
	SecondaryFile bool
}

func NewGenericSource(name string, handle engine.SourceHandle, secondaryFile bool) *GenericSource {
	return &GenericSource{base: base{name: name, kind: KindGeneric, handle: handle}, SecondaryFile: secondaryFile}
}
