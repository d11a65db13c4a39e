package dispatch

import (
	"strings"
	"testing"
)

// collect builds a CommandContext that records replies.
func collect(charID uint32, channel Channel) (*CommandContext, *[]string) {
	var replies []string
	ctx := &CommandContext{
		CharID:  charID,
		Name:    "Tester",
		Channel: channel,
		Reply:   func(msg any) { replies = append(replies, msg.(string)) },
	}
	return ctx, &replies
}

func testRouter(t *testing.T) *CommandRouter {
	t.Helper()
	return NewCommandRouter(testAccess(t), nil, "!")
}

func TestCommandParamRouting(t *testing.T) {
	r := testRouter(t)

	var cleared bool
	var setChar string
	r.Register("leader", "", ChannelPrivateMessage, "member",
		[]Param{Const("clear")}, "leader clear", func(ctx *CommandContext) { cleared = true })
	r.Register("leader", "", ChannelPrivateMessage, "member",
		[]Param{Const("set"), Word("char")}, "leader set <char>", func(ctx *CommandContext) {
			setChar = ctx.Args["char"]
		})

	ctx, _ := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!leader set Foo")
	if setChar != "Foo" {
		t.Errorf("Expected char=Foo, got %q", setChar)
	}

	r.Process(ctx, "!leader clear")
	if !cleared {
		t.Error("Expected the clear handler to run")
	}
}

func TestOptionalParam(t *testing.T) {
	r := testRouter(t)

	var got map[string]string
	r.Register("topic", "", ChannelPrivateMessage, "member",
		[]Param{Optional(Any("text"))}, "topic [<text>]", func(ctx *CommandContext) {
			got = ctx.Args
		})

	ctx, _ := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!topic")
	if got == nil || got["text"] != "" {
		t.Errorf("Expected empty optional capture, got %v", got)
	}

	r.Process(ctx, "!topic raid at nine")
	if got["text"] != "raid at nine" {
		t.Errorf("Expected 'raid at nine', got %q", got["text"])
	}
}

func TestCommandSymbolRules(t *testing.T) {
	r := testRouter(t)

	calls := 0
	handler := func(ctx *CommandContext) { calls++ }
	r.Register("online", "", ChannelPrivateMessage, "all", nil, "online", handler)
	r.Register("online", "", ChannelOrg, "all", nil, "online", handler)

	// Direct messages accept the command with or without the symbol.
	ctx, _ := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "online")
	r.Process(ctx, "!online")
	if calls != 2 {
		t.Errorf("Expected 2 calls on private message, got %d", calls)
	}

	// On a public channel a bare line is ordinary chat, not a command.
	calls = 0
	orgCtx, replies := collect(5, ChannelOrg)
	r.Process(orgCtx, "online")
	if calls != 0 || len(*replies) != 0 {
		t.Error("Expected an unprefixed channel line to be ignored")
	}
	r.Process(orgCtx, "!online")
	if calls != 1 {
		t.Errorf("Expected 1 call with symbol, got %d", calls)
	}
}

func TestCommandAccessGating(t *testing.T) {
	r := testRouter(t)
	r.Register("shutdown", "", ChannelPrivateMessage, "superadmin", nil, "shutdown",
		func(ctx *CommandContext) { t.Error("Handler must not run for a denied character") })

	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!shutdown")
	if len(*replies) != 1 || (*replies)[0] != replyAccessDenied {
		t.Errorf("Expected access denied, got %v", *replies)
	}
}

func TestCommandUnknown(t *testing.T) {
	r := testRouter(t)
	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!nosuchthing")
	if len(*replies) != 1 || (*replies)[0] != replyUnknownCommand {
		t.Errorf("Expected unknown command reply, got %v", *replies)
	}
}

func TestCommandSyntaxHelp(t *testing.T) {
	r := testRouter(t)
	r.Register("leader", "", ChannelPrivateMessage, "member",
		[]Param{Const("set"), Word("char")}, "leader set <char>", func(ctx *CommandContext) {})

	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!leader bogus args here")
	if len(*replies) != 1 || !strings.Contains((*replies)[0], "leader set <char>") {
		t.Errorf("Expected syntax help, got %v", *replies)
	}
}

func TestCommandAlias(t *testing.T) {
	r := testRouter(t)
	called := false
	r.Register("online", "", ChannelPrivateMessage, "all", nil, "online",
		func(ctx *CommandContext) { called = true })
	r.AddAlias("o", "online")

	ctx, _ := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!o")
	if !called {
		t.Error("Expected alias to resolve to the command")
	}
}

func TestCommandDisabled(t *testing.T) {
	r := testRouter(t)
	r.Register("online", "", ChannelPrivateMessage, "all", nil, "online",
		func(ctx *CommandContext) { t.Error("Disabled handler must not run") })
	if !r.SetEnabled("online", "", ChannelPrivateMessage, false) {
		t.Fatal("SetEnabled failed to find the config")
	}

	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!online")
	if len(*replies) != 1 || (*replies)[0] != replyInvalidSyntax {
		t.Errorf("Expected invalid syntax for a disabled command, got %v", *replies)
	}
}

func TestCommandBannedCharacterIsSilent(t *testing.T) {
	r := testRouter(t)
	r.Register("online", "", ChannelPrivateMessage, "all", nil, "online",
		func(ctx *CommandContext) { t.Error("Handler must not run for a banned character") })
	r.SetBanPredicate(func(charID uint32) bool { return charID == 666 })

	ctx, replies := collect(666, ChannelPrivateMessage)
	r.Process(ctx, "!online")
	if len(*replies) != 0 {
		t.Errorf("Expected silence for a banned character, got %v", *replies)
	}
}

func TestCommandPanicRecovery(t *testing.T) {
	r := testRouter(t)
	r.Register("boom", "", ChannelPrivateMessage, "all", nil, "boom",
		func(ctx *CommandContext) { panic("handler bug") })

	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!boom")
	if len(*replies) != 1 || (*replies)[0] != replyInternalError {
		t.Errorf("Expected internal error reply, got %v", *replies)
	}
}

func TestCommandRegisterFailSoft(t *testing.T) {
	r := testRouter(t)

	// An unknown access label skips the handler instead of failing startup.
	r.Register("broken", "", ChannelPrivateMessage, "nosuchlevel", nil, "broken",
		func(ctx *CommandContext) {})

	ctx, replies := collect(5, ChannelPrivateMessage)
	r.Process(ctx, "!broken")
	if len(*replies) != 1 || (*replies)[0] != replyUnknownCommand {
		t.Errorf("Expected the skipped command to stay unknown, got %v", *replies)
	}
}

func TestHelpForFiltersByAccess(t *testing.T) {
	r := testRouter(t)
	r.Register("online", "", ChannelPrivateMessage, "all", nil, "online", func(ctx *CommandContext) {})
	r.Register("shutdown", "", ChannelPrivateMessage, "superadmin", nil, "shutdown", func(ctx *CommandContext) {})

	member := r.HelpFor(5, ChannelPrivateMessage)
	if len(member) != 1 || member[0] != "!online" {
		t.Errorf("Expected member help [!online], got %v", member)
	}

	super := r.HelpFor(1, ChannelPrivateMessage)
	if len(super) != 2 {
		t.Errorf("Expected 2 help lines for superadmin, got %v", super)
	}
}
