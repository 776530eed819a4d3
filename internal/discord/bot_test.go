package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestPermissionChecker_IsOperator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		roleID string
		inv    *Invocation
		want   bool
	}{
		{
			name:   "member with operator role",
			roleID: "123",
			inv:    &Invocation{Roles: []string{"456", "123", "789"}},
			want:   true,
		},
		{
			name:   "member without operator role",
			roleID: "123",
			inv:    &Invocation{Roles: []string{"456", "789"}},
			want:   false,
		},
		{
			name:   "empty role allows all",
			roleID: "",
			inv:    &Invocation{Roles: []string{"456"}},
			want:   true,
		},
		{
			name:   "no roles outside a guild",
			roleID: "123",
			inv:    &Invocation{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pc := NewPermissionChecker(tt.roleID)
			if got := pc.IsOperator(tt.inv); got != tt.want {
				t.Errorf("IsOperator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPermissionChecker_NilAllowsAll(t *testing.T) {
	t.Parallel()

	var pc *PermissionChecker
	if !pc.IsOperator(&Invocation{}) {
		t.Error("nil checker should allow every invocation")
	}
}

func TestBot_ReadyTracksGateway(t *testing.T) {
	t.Parallel()

	b := &Bot{router: NewCommandRouter()}
	if b.Ready() {
		t.Fatal("new bot should not be ready")
	}

	b.onReady(nil, &discordgo.Ready{User: &discordgo.User{Username: "tailbot", Discriminator: "0"}})
	if !b.Ready() {
		t.Error("bot should be ready after Ready event")
	}

	b.onDisconnect(nil, &discordgo.Disconnect{})
	if b.Ready() {
		t.Error("bot should not be ready after Disconnect event")
	}

	b.onResumed(nil, &discordgo.Resumed{})
	if !b.Ready() {
		t.Error("bot should be ready after Resumed event")
	}
}

func TestIntents(t *testing.T) {
	t.Parallel()

	for _, want := range []discordgo.Intent{
		discordgo.IntentsGuilds,
		discordgo.IntentsGuildVoiceStates,
		discordgo.IntentsGuildMessages,
		discordgo.IntentsDirectMessages,
	} {
		if Intents&want == 0 {
			t.Errorf("Intents missing %d", want)
		}
	}
	if Intents&discordgo.IntentsMessageContent != 0 {
		t.Error("Intents should not request message content")
	}
}
