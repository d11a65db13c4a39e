package bot

import (
	"fmt"
	"log"

	"github.com/auno/aobot/internal/conn"
	"github.com/auno/aobot/internal/protocol"
	"github.com/auno/aobot/internal/text"
)

// The outbound API. Every path accepts a plain string or a text.Blob,
// paginates to the configured page length, and enqueues one packet per page
// in order on the target connection (defaulting to primary).

// SendPrivateMessage sends a direct message to a character.
func (b *Bot) SendPrivateMessage(target uint32, msg any, c *conn.Conn) {
	c = b.target(c)
	if c == nil {
		return
	}
	for _, page := range pages(msg, b.cfg.PrivateMessagePageLength) {
		c.EnqueuePacket(conn.PriorityDefault, protocol.NewPrivateMessage(target, page, "\x00"))
	}
}

// SendOrgMessage sends to the connection's org channel.
func (b *Bot) SendOrgMessage(msg any, c *conn.Conn) {
	c = b.target(c)
	if c == nil {
		return
	}
	if c.OrgID == 0 {
		log.Printf("bot: %s is not in an org, dropping org message", c.Cfg.ID)
		return
	}
	channelID := protocol.OrgChannelID(c.OrgID)
	for _, page := range pages(msg, b.cfg.OrgChannelPageLength) {
		c.EnqueuePacket(conn.PriorityDefault, protocol.NewPublicChannelMessage(channelID, page, "\x00"))
	}
}

// SendPrivateChannelMessage sends to a private channel the connection is in.
func (b *Bot) SendPrivateChannelMessage(channelID uint32, msg any, c *conn.Conn) {
	c = b.target(c)
	if c == nil {
		return
	}
	for _, page := range pages(msg, b.cfg.PrivateChannelPageLength) {
		c.EnqueuePacket(conn.PriorityDefault, protocol.NewPrivateChannelMessage(channelID, page, "\x00"))
	}
}

// SendMassMessage fans a message out to many characters through the slave
// connections' shared queue; with no slaves configured it degrades to the
// primary's own rate-limited queue.
func (b *Bot) SendMassMessage(targets []uint32, msg any) {
	pgs := pages(msg, b.cfg.PrivateMessagePageLength)
	for _, target := range targets {
		for _, page := range pgs {
			if b.massQueue != nil {
				b.massQueue <- massMessage{charID: target, text: page}
			} else if b.primary != nil {
				b.primary.EnqueuePacket(conn.PriorityLow, protocol.NewPrivateMessage(target, page, "\x00"))
			}
		}
	}
}

func (b *Bot) target(c *conn.Conn) *conn.Conn {
	if c != nil {
		return c
	}
	return b.primary
}

func pages(msg any, max int) []string {
	switch m := msg.(type) {
	case string:
		if len(m) <= max {
			return []string{m}
		}
		return text.Paginate("", m, max)
	case text.Blob:
		return text.Paginate(m.Title, m.Content, max)
	case *text.Blob:
		return text.Paginate(m.Title, m.Content, max)
	default:
		return []string{fmt.Sprint(m)}
	}
}
