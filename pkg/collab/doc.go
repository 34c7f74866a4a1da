// Package collab keeps the documents of several clients converging over a
// relay with no authoritative server.
//
// A Session owns the identity of this client, subscribes to the channel of a
// share and translates between document changes and wire envelopes. Messages
// the client sent itself and ids already seen within the dedupe window are
// ignored, and remote changes are applied without being broadcast again, so a
// relay that echoes everything to everyone cannot cause loops. Conflicts
// resolve last-writer-wins per article.
package collab
