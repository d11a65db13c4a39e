package bot

import (
	"github.com/auno/aobot/internal/conn"
	"github.com/auno/aobot/internal/dispatch"
	"github.com/auno/aobot/internal/protocol"
)

// Runtime-owned packet handlers run before module handlers so derived
// connection state (channels, buddies, name cache) is current when modules
// see the packet.
const statePriority = 10

func (b *Bot) registerHandlers() {
	t := b.Registry.Packets

	t.Register(protocol.SCharacterName, statePriority, b.onCharacterName)
	t.Register(protocol.SCharacterLookup, statePriority, b.onCharacterName)
	t.Register(protocol.SBuddyAdded, statePriority, b.onBuddyAdded)
	t.Register(protocol.SBuddyRemoved, statePriority, b.onBuddyRemoved)
	t.Register(protocol.SPublicChannelJoined, statePriority, b.onChannelJoined)
	t.Register(protocol.SPublicChannelLeft, statePriority, b.onChannelLeft)
	t.Register(protocol.SPrivateChannelClientJoined, statePriority, b.onPrivateChannelClientJoined)
	t.Register(protocol.SPrivateChannelClientLeft, statePriority, b.onPrivateChannelClientLeft)

	t.Register(protocol.SPrivateMessage, dispatch.DefaultPriority, b.onPrivateMessage)
	t.Register(protocol.SPrivateChannelMessage, dispatch.DefaultPriority, b.onPrivateChannelMessage)
	t.Register(protocol.SPublicChannelMessage, dispatch.DefaultPriority, b.onPublicChannelMessage)
}

func (b *Bot) onCharacterName(c *conn.Conn, p protocol.ServerPacket) {
	switch pkt := p.(type) {
	case *protocol.CharacterName:
		b.names[pkt.CharID] = pkt.Name
	case *protocol.CharacterLookupResult:
		b.names[pkt.CharID] = pkt.Name
	}
}

func (b *Bot) onBuddyAdded(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.BuddyAdded)
	c.Buddies[pkt.CharID] = pkt.Online != 0
}

func (b *Bot) onBuddyRemoved(c *conn.Conn, p protocol.ServerPacket) {
	delete(c.Buddies, p.(*protocol.BuddyRemoved).CharID)
}

func (b *Bot) onChannelJoined(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PublicChannelJoined)
	c.Channels[pkt.ChannelID] = pkt.Name
	if protocol.IsOrgChannel(pkt.ChannelID) {
		c.OrgID = uint32(pkt.ChannelID)
		c.OrgName = pkt.Name
	}
}

func (b *Bot) onChannelLeft(c *conn.Conn, p protocol.ServerPacket) {
	delete(c.Channels, p.(*protocol.PublicChannelLeft).ChannelID)
}

func (b *Bot) onPrivateChannelClientJoined(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PrivateChannelClientJoined)
	if pkt.ChannelID == c.CharID {
		c.PrivateChannelMembers[pkt.CharID] = true
	}
}

func (b *Bot) onPrivateChannelClientLeft(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PrivateChannelClientLeft)
	if pkt.ChannelID == c.CharID {
		delete(c.PrivateChannelMembers, pkt.CharID)
	}
}

// Command routing. Only the primary connection answers commands; slaves
// exist to spread outbound load, not to double-process chat.

func (b *Bot) onPrivateMessage(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PrivateMessage)
	if c != b.primary || pkt.CharID == c.CharID {
		return
	}
	ctx := &dispatch.CommandContext{
		CharID:  pkt.CharID,
		Name:    b.names[pkt.CharID],
		Channel: dispatch.ChannelPrivateMessage,
		Reply: func(msg any) {
			b.SendPrivateMessage(pkt.CharID, msg, c)
		},
	}
	b.Registry.Commands.Process(ctx, pkt.Message)
}

func (b *Bot) onPrivateChannelMessage(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PrivateChannelMessage)
	if c != b.primary || pkt.CharID == c.CharID || pkt.ChannelID != c.CharID {
		return
	}
	ctx := &dispatch.CommandContext{
		CharID:  pkt.CharID,
		Name:    b.names[pkt.CharID],
		Channel: dispatch.ChannelPrivateChannel,
		Reply: func(msg any) {
			b.SendPrivateChannelMessage(pkt.ChannelID, msg, c)
		},
	}
	b.Registry.Commands.Process(ctx, pkt.Message)
}

func (b *Bot) onPublicChannelMessage(c *conn.Conn, p protocol.ServerPacket) {
	pkt := p.(*protocol.PublicChannelMessage)
	if c != b.primary || pkt.CharID == c.CharID || !protocol.IsOrgChannel(pkt.ChannelID) {
		return
	}
	ctx := &dispatch.CommandContext{
		CharID:  pkt.CharID,
		Name:    b.names[pkt.CharID],
		Channel: dispatch.ChannelOrg,
		Reply: func(msg any) {
			b.SendOrgMessage(msg, c)
		},
	}
	b.Registry.Commands.Process(ctx, pkt.Message)
}
