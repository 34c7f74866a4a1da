// Package flatplan is the editing core of a magazine flat plan: the page
// layout of articles and visuals, live collaboration on a shared magazine,
// undo history and local persistence.
//
// # Editor
//
// An [Editor] holds one open magazine. [Open] loads it from a
// [github.com/flatplan/flatplan.go/pkg/persist.Store] and saves it after every
// change; [New] starts a blank magazine that is not stored.
//
// All edits go through the editor's [github.com/flatplan/flatplan.go/pkg/document.Document].
// Every mutation re-runs the layout, records an undo entry and, while a
// collaboration session is active, is broadcast to the other editors.
//
// # Sharing
//
// [Editor.Share] publishes the magazine on a relay and returns a link of the
// form https://flatplan.app/share/{id}?edit=1. Peers open it with
// [Editor.JoinShare]. When the relay is unreachable the magazine is encoded
// into the link itself (/share?data=...) and opening it loads a copy without
// a live session.
//
// The relay is anything implementing [github.com/flatplan/flatplan.go/pkg/relay.Relay]:
// the in-process [github.com/flatplan/flatplan.go/pkg/relay.Memory] or the
// websocket client in [github.com/flatplan/flatplan.go/pkg/relay/wsrelay],
// which talks to the server in [github.com/flatplan/flatplan.go/contrib/relayserver].
//
// # Layout and rendering
//
// The layout engine in [github.com/flatplan/flatplan.go/pkg/layout] works
// without an Editor, as does the page-flip renderer in
// [github.com/flatplan/flatplan.go/pkg/flip].
package flatplan
