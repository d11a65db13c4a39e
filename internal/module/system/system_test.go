package system

import (
	"strings"
	"testing"

	"github.com/auno/aobot/internal/bot"
	"github.com/auno/aobot/internal/config"
	"github.com/auno/aobot/internal/dispatch"
	"github.com/auno/aobot/internal/protocol"
	"github.com/auno/aobot/internal/text"
)

func testModule(t *testing.T) (*bot.Bot, *Module) {
	t.Helper()
	cfg := &config.Config{
		CommandSymbol:            "!",
		PrivateMessagePageLength: 7500,
	}
	b := bot.New(cfg, nil)
	m := New(b, "Bossman", "1.2.3")
	if err := b.RegisterModules(m); err != nil {
		t.Fatalf("RegisterModules failed: %v", err)
	}
	return b, m
}

func run(b *bot.Bot, charID uint32, line string) []any {
	var replies []any
	ctx := &dispatch.CommandContext{
		CharID:  charID,
		Channel: dispatch.ChannelPrivateMessage,
		Reply:   func(msg any) { replies = append(replies, msg) },
	}
	b.Registry.Commands.Process(ctx, line)
	return replies
}

func TestVersionCommand(t *testing.T) {
	b, _ := testModule(t)
	replies := run(b, 1234, "!version")
	if len(replies) != 1 || replies[0].(string) != "aobot 1.2.3" {
		t.Errorf("Unexpected version reply: %v", replies)
	}
}

func TestHelpListsAccessibleCommands(t *testing.T) {
	b, _ := testModule(t)
	replies := run(b, 1234, "!help")
	if len(replies) != 1 {
		t.Fatalf("Expected 1 reply, got %d", len(replies))
	}
	blob, ok := replies[0].(text.Blob)
	if !ok {
		t.Fatalf("Expected a text.Blob, got %T", replies[0])
	}
	if !strings.Contains(blob.Content, "!version") {
		t.Errorf("Expected !version in help, got %q", blob.Content)
	}
	// Superadmin commands stay hidden from unprivileged characters.
	if strings.Contains(blob.Content, "!shutdown") {
		t.Errorf("Expected !shutdown hidden, got %q", blob.Content)
	}
}

func TestShutdownRequiresSuperAdmin(t *testing.T) {
	b, _ := testModule(t)

	replies := run(b, 1234, "!shutdown")
	if len(replies) != 1 || replies[0].(string) != "Access denied." {
		t.Errorf("Expected access denied, got %v", replies)
	}

	// The superadmin is recognized by cached character name.
	b.Registry.Packets.Dispatch(nil, &protocol.CharacterName{CharID: 1, Name: "Bossman"})
	replies = run(b, 1, "!shutdown")
	if len(replies) != 1 || replies[0].(string) != "Shutting down." {
		t.Errorf("Expected shutdown confirmation, got %v", replies)
	}
}

func TestBanCommandsNeedStorage(t *testing.T) {
	b, _ := testModule(t)
	b.Registry.Packets.Dispatch(nil, &protocol.CharacterName{CharID: 1, Name: "Bossman"})

	replies := run(b, 1, "!ban add 1234")
	if len(replies) != 1 || replies[0].(string) != "No ban storage configured." {
		t.Errorf("Unexpected ban reply: %v", replies)
	}
}
