package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Responder is the subset of [discordgo.Session] used to answer
// interactions. Tests substitute the recorder in the mock package.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ReplyDeliveryError reports a reply that could not be delivered to Discord.
// It is logged and never retried.
type ReplyDeliveryError struct {
	Command string
	Err     error
}

func (e *ReplyDeliveryError) Error() string {
	return fmt.Sprintf("discord: deliver reply to %q: %v", e.Command, e.Err)
}

func (e *ReplyDeliveryError) Unwrap() error { return e.Err }

// Reply answers an interaction with a single text message.
func Reply(rs Responder, i *discordgo.InteractionCreate, content string) error {
	return rs.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

// DeferReply acknowledges an interaction whose answer follows later through
// [EditReply].
func DeferReply(rs Responder, i *discordgo.InteractionCreate) error {
	return rs.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

// EditReply replaces the placeholder left by [DeferReply] with content.
func EditReply(rs Responder, i *discordgo.InteractionCreate, content string) error {
	_, err := rs.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}
