// Package agent runs the dispatch engine: one round per user query, routing
// model-requested tool invocations to their providers and folding every
// result back into the running transcript.
package agent

import "github.com/harborseal/harborseal/internal/schema"

// Session holds the in-memory transcript for one conversation. Nothing is
// persisted; a new process starts a fresh session.
type Session struct {
	systemPrompt string
	transcript   schema.Messages
}

// NewSession returns a session seeded with the system prompt, when set.
func NewSession(systemPrompt string) *Session {
	s := &Session{systemPrompt: systemPrompt}
	s.transcript = schema.NewMessages()
	if systemPrompt != "" {
		s.transcript.AddSystem(systemPrompt)
	}
	return s
}

// Transcript exposes the live transcript for the engine to extend.
func (s *Session) Transcript() *schema.Messages {
	return &s.transcript
}

// Len is the number of turns, system prompt included.
func (s *Session) Len() int {
	return s.transcript.Len()
}

// Reset drops every turn and re-seeds the system prompt.
func (s *Session) Reset() {
	s.transcript = schema.NewMessages()
	if s.systemPrompt != "" {
		s.transcript.AddSystem(s.systemPrompt)
	}
}
