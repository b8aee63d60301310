package engine

import "context"

// SceneAPI is the subset of the engine that manages scene composition
// (spec.md §3 Scene, §9 ownership: "Orchestrator owns SourceSet owns
// Sources"; the engine itself owns the actual scene-item handles).
type SceneAPI interface {
	// AddSource creates a scene item for the given source kind and
	// returns an opaque handle the core must pass back for subsequent
	// operations on that item.
	AddSource(ctx context.Context, kind SourceKind, params map[string]any) (SourceHandle, error)
	RemoveSource(ctx context.Context, h SourceHandle) error
	SetVisible(ctx context.Context, h SourceHandle, visible bool) error
	MoveToTop(ctx context.Context, h SourceHandle) error
	RefreshTransform(ctx context.Context, h SourceHandle, bounds Bounds) error
}

// SourceKind enumerates the capture source variants (spec.md §3).
type SourceKind int

const (
	SourceGame SourceKind = iota
	SourceMonitor
	SourceWindow
	SourceBRB
	SourceGaze
	SourceImage
	SourceGeneric
)

func (k SourceKind) String() string {
	switch k {
	case SourceGame:
		return "game"
	case SourceMonitor:
		return "monitor"
	case SourceWindow:
		return "window"
	case SourceBRB:
		return "brb"
	case SourceGaze:
		return "gaze"
	case SourceImage:
		return "image"
	case SourceGeneric:
		return "generic"
	default:
		return "unknown"
	}
}

// SourceHandle is an opaque reference to a scene item owned by the
// engine. The core never dereferences it; it is the "non-owning
// back-reference implemented as an index (or tag)" spec.md §9 describes.
type SourceHandle interface {
	SourceID() string
}

// Bounds describes an optional transform applied to a source.
type Bounds struct {
	X, Y          float64
	Width, Height float64
	FlipH, FlipV  bool
}
