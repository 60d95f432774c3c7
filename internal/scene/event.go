// Package scene defines the Scene contract (detect/continue/encode_input),
// the SceneEvent taxonomy, and the priority-ordered Composite orchestrator.
// Grounded on internal/session/agent/monitor/events.go's AgentEvent (a
// Type enum plus an untyped Data payload, with one typed struct per
// event kind).
package scene

import "github.com/dcosson/termscene/internal/snapshot"

// EventKind identifies the shape of Event.Data.
type EventKind int

const (
	IndicatorChanged EventKind = iota
	MessageCreated
	LastMessageUpdated
	InputChanged
	QuestionCreated
	LastQuestionUpdated
	PermissionRequired
	SceneStateChanged // emitted only by the Gateway, never by a Scene
)

// Event is a single SceneEvent. Data holds the kind-specific payload
// struct below.
type Event struct {
	Kind EventKind
	Data any
}

// IndicatorChangedData is the payload for IndicatorChanged.
type IndicatorChangedData struct {
	Active bool
	Text   string
}

// MessageCreatedData is the payload for MessageCreated.
type MessageCreatedData struct {
	Style   string // "text" | "block"
	Content []snapshot.RichLine
	Echo    bool
}

// LastMessageUpdatedData is the payload for LastMessageUpdated. HasContent
// false (with Content nil) represents the "null" deletion variant.
type LastMessageUpdatedData struct {
	Style      string
	Content    []snapshot.RichLine
	HasContent bool
	Echo       bool
}

// InputChangedData is the payload for InputChanged.
type InputChangedData struct {
	Active bool
	Text   string
}

// Option is one choice offered by a question or permission prompt.
type Option struct {
	Label       string
	Description string
}

// QuestionCreatedData is the payload for QuestionCreated and, with the
// same shape, LastQuestionUpdated.
type QuestionCreatedData struct {
	Header      string
	Question    string
	Options     []Option
	Selected    int
	HasSelected bool
}

// PermissionRequiredData is the payload for PermissionRequired.
type PermissionRequiredData struct {
	Command     string
	Description string
	Options     []Option
	Selected    int
	HasSelected bool
}

// SceneStateChangedData is the payload for SceneStateChanged. HasState
// false represents the "null" (no active scene) variant.
type SceneStateChangedData struct {
	State    string
	HasState bool
}

func NewIndicatorChanged(active bool, text string) Event {
	return Event{Kind: IndicatorChanged, Data: IndicatorChangedData{Active: active, Text: text}}
}

func NewMessageCreated(style string, content []snapshot.RichLine, echo bool) Event {
	return Event{Kind: MessageCreated, Data: MessageCreatedData{Style: style, Content: content, Echo: echo}}
}

func NewInputChanged(active bool, text string) Event {
	return Event{Kind: InputChanged, Data: InputChangedData{Active: active, Text: text}}
}

func NewSceneStateChanged(state string, active bool) Event {
	return Event{Kind: SceneStateChanged, Data: SceneStateChangedData{State: state, HasState: active}}
}

// Input is channel-originated input flowing back toward the PTY.
type Input struct {
	Kind  InputKind
	Text  string // for InputText
	Index int    // for InputSelect
}

// InputKind identifies which Input field is meaningful.
type InputKind int

const (
	InputText InputKind = iota
	InputSelect
)
