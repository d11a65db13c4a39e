// Package system is the built-in feature module: core access levels and
// the baseline commands every deployment gets.
package system

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/auno/aobot/internal/bot"
	"github.com/auno/aobot/internal/dispatch"
	"github.com/auno/aobot/internal/text"
)

// Module wires the baseline commands against the runtime.
type Module struct {
	Bot        *bot.Bot
	SuperAdmin string // character name with full access
	Version    string
	startedAt  time.Time
}

func New(b *bot.Bot, superAdmin, version string) *Module {
	return &Module{Bot: b, SuperAdmin: superAdmin, Version: version, startedAt: time.Now()}
}

// Register implements dispatch.Module.
func (m *Module) Register(r *dispatch.Registry) {
	r.Access.Register("superadmin", 10, func(charID uint32) bool {
		name, ok := m.Bot.CharacterName(charID)
		return ok && strings.EqualFold(name, m.SuperAdmin)
	})

	for _, channel := range []dispatch.Channel{
		dispatch.ChannelPrivateMessage,
		dispatch.ChannelOrg,
		dispatch.ChannelPrivateChannel,
	} {
		channel := channel
		r.Commands.Register("help", "", channel, "all", nil,
			"help", m.cmdHelp(channel))
		r.Commands.Register("version", "", channel, "all", nil,
			"version", m.cmdVersion)
	}

	r.Commands.Register("status", "", dispatch.ChannelPrivateMessage, "all", nil,
		"status", m.cmdStatus)
	r.Commands.Register("shutdown", "", dispatch.ChannelPrivateMessage, "superadmin", nil,
		"shutdown", m.cmdShutdown)

	r.Commands.Register("ban", "add", dispatch.ChannelPrivateMessage, "superadmin",
		[]dispatch.Param{dispatch.Const("add"), dispatch.Int("char_id")},
		"ban add <char id>", m.cmdBanAdd)
	r.Commands.Register("ban", "remove", dispatch.ChannelPrivateMessage, "superadmin",
		[]dispatch.Param{dispatch.Const("remove"), dispatch.Int("char_id")},
		"ban remove <char id>", m.cmdBanRemove)

	r.Events.Register("system.connect_notice", bot.ConnectEvent, func(any) {
		c := m.Bot.Primary()
		if c != nil {
			log.Printf("aobot %s online as %s", m.Version, c.CharName)
		}
	})
}

func (m *Module) cmdHelp(channel dispatch.Channel) dispatch.CommandHandler {
	return func(ctx *dispatch.CommandContext) {
		lines := m.Bot.Registry.Commands.HelpFor(ctx.CharID, channel)
		ctx.Reply(text.Blob{
			Title:   "Available commands",
			Content: strings.Join(lines, "\n"),
		})
	}
}

func (m *Module) cmdVersion(ctx *dispatch.CommandContext) {
	ctx.Reply("aobot " + m.Version)
}

func (m *Module) cmdStatus(ctx *dispatch.CommandContext) {
	var b strings.Builder
	fmt.Fprintf(&b, "Up since %s.\n", m.startedAt.UTC().Format(time.RFC1123))
	for _, c := range m.Bot.Connections() {
		role := "slave"
		if c.Cfg.IsMain {
			role = "main"
		}
		fmt.Fprintf(&b, "%s (%s): %d channels, %d buddies, %d queued\n",
			c.CharName, role, len(c.Channels), len(c.Buddies), c.Queue.Len())
	}
	ctx.Reply(text.Blob{Title: "Bot status", Content: b.String()})
}

func (m *Module) cmdShutdown(ctx *dispatch.CommandContext) {
	ctx.Reply("Shutting down.")
	m.Bot.Shutdown()
}

func (m *Module) cmdBanAdd(ctx *dispatch.CommandContext) {
	charID, err := strconv.ParseUint(ctx.Args["char_id"], 10, 32)
	if err != nil {
		ctx.Reply("Invalid character id.")
		return
	}
	if m.Bot.Persist == nil {
		ctx.Reply("No ban storage configured.")
		return
	}
	if err := m.Bot.Persist.AddBan(uint32(charID), "banned by "+ctx.Name); err != nil {
		ctx.Reply("Could not store the ban.")
		return
	}
	ctx.Reply(fmt.Sprintf("Character %d banned.", charID))
}

func (m *Module) cmdBanRemove(ctx *dispatch.CommandContext) {
	charID, err := strconv.ParseUint(ctx.Args["char_id"], 10, 32)
	if err != nil {
		ctx.Reply("Invalid character id.")
		return
	}
	if m.Bot.Persist == nil {
		ctx.Reply("No ban storage configured.")
		return
	}
	removed, err := m.Bot.Persist.RemoveBan(uint32(charID))
	if err != nil || !removed {
		ctx.Reply(fmt.Sprintf("Character %d was not banned.", charID))
		return
	}
	ctx.Reply(fmt.Sprintf("Character %d unbanned.", charID))
}
