// Package mock provides test doubles for Discord interaction testing.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records interaction responses for test assertions.
// It is safe for concurrent use.
type InteractionResponder struct {
	mu sync.Mutex

	responses []*discordgo.InteractionResponse
	edits     []*discordgo.WebhookEdit

	// RespondErr is returned by InteractionRespond when non-nil.
	RespondErr error

	// EditErr is returned by InteractionResponseEdit when non-nil.
	EditErr error
}

// InteractionRespond records the response and returns RespondErr.
func (m *InteractionResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	return m.RespondErr
}

// InteractionResponseEdit records the edit and returns a stub message.
func (m *InteractionResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit)
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	content := ""
	if edit.Content != nil {
		content = *edit.Content
	}
	return &discordgo.Message{ID: "mock-edit", Content: content}, nil
}

// Responses returns a copy of every recorded response.
func (m *InteractionResponder) Responses() []*discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), m.responses...)
}

// Edits returns a copy of every recorded edit.
func (m *InteractionResponder) Edits() []*discordgo.WebhookEdit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*discordgo.WebhookEdit(nil), m.edits...)
}

// LastResponse returns the most recently recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil
	}
	return m.responses[len(m.responses)-1]
}

// LastEditContent returns the content of the most recent edit, or "".
func (m *InteractionResponder) LastEditContent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 || m.edits[len(m.edits)-1].Content == nil {
		return ""
	}
	return *m.edits[len(m.edits)-1].Content
}

// Reset clears all recorded interactions and errors.
func (m *InteractionResponder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = nil
	m.edits = nil
	m.RespondErr = nil
	m.EditErr = nil
}
