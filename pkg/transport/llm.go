package transport

import (
	"context"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
)

// NoteInterpreter turns a note's text into zero or more display items,
// published as LLMResponse events (spec §6 "Operator registry and LLM
// HTTP client are external collaborators"). Real implementations call out
// to an LLM HTTP endpoint; this package ships only the no-op default,
// matching the spec's explicit non-goal of implementing LLM integration.
type NoteInterpreter interface {
	Interpret(ctx context.Context, noteID, text string) error
}

// NoOpInterpreter never calls out anywhere; Interpret always succeeds
// without publishing anything.
type NoOpInterpreter struct{}

// Interpret implements NoteInterpreter by doing nothing.
func (NoOpInterpreter) Interpret(ctx context.Context, noteID, text string) error { return nil }

// PublishDisplayItem is a convenience a NoteInterpreter implementation can
// use to surface a result over the websocket broadcast.
func PublishDisplayItem(bus *eventbus.Bus, noteID, itemID, kind, content string) {
	bus.Publish(events.LLMResponse{NoteID: noteID, ItemID: itemID, Kind: kind, Content: content})
}
