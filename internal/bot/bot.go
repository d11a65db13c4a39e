// Package bot is the session runtime: it logs in every configured account,
// merges packets from all connections into one queue, and runs the
// single-threaded dispatch loop that drives all handler execution.
package bot

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/auno/aobot/internal/config"
	"github.com/auno/aobot/internal/conn"
	"github.com/auno/aobot/internal/dispatch"
	"github.com/auno/aobot/internal/protocol"
	"github.com/auno/aobot/internal/scheduler"
	"github.com/auno/aobot/internal/store"
)

// Runtime status values.
const (
	statusStarting int32 = iota
	statusRunning
	statusError
	statusShutdown
)

// Exit classification for the process boundary.
var (
	ErrLoginFailure = errors.New("bot: login failure")
	ErrRuntime      = errors.New("bot: runtime error")
)

// Event types owned by the runtime.
const (
	// ConnectEvent fires once after login when the post-login packet
	// flood has settled.
	ConnectEvent = "connect"
)

const (
	mainLoopPoll = 100 * time.Millisecond
	// The post-login flood counts as settled after this many consecutive
	// empty polls.
	settlePolls = 2
)

type inbound struct {
	conn   *conn.Conn
	packet protocol.ServerPacket
}

type massMessage struct {
	charID uint32
	text   string
}

// Bot composes the connections, the dispatch engine and the scheduler.
type Bot struct {
	cfg      *config.Config
	Registry *dispatch.Registry
	Sched    *scheduler.Scheduler
	Persist  *store.Registry

	conns   []*conn.Conn
	primary *conn.Conn

	incoming  chan inbound
	massQueue chan massMessage
	status    atomic.Int32
	names     map[uint32]string // char id → name, main-loop only
}

// New wires the runtime. persist may be nil for tests.
func New(cfg *config.Config, persist *store.Registry) *Bot {
	var templates protocol.TemplateSource = protocol.MapTemplateSource(nil)
	if persist != nil {
		templates = persist
	}
	b := &Bot{
		cfg:      cfg,
		Registry: dispatch.NewRegistry(persist, templates, cfg.CommandSymbol),
		Sched:    scheduler.New(),
		Persist:  persist,
		incoming: make(chan inbound, 1000),
		names:    make(map[uint32]string),
	}
	b.Registry.Events.RegisterType(ConnectEvent)
	if persist != nil {
		b.Registry.Commands.SetBanPredicate(persist.IsBanned)
	}
	b.registerHandlers()
	return b
}

// Primary returns the main connection.
func (b *Bot) Primary() *conn.Conn {
	return b.primary
}

// Connections returns all live connections.
func (b *Bot) Connections() []*conn.Conn {
	return b.conns
}

// Shutdown asks the main loop to stop after the current iteration.
func (b *Bot) Shutdown() {
	b.status.Store(statusShutdown)
}

// RegisterModules runs the explicit registration phase with the
// verify-and-prune reconciliation around it.
func (b *Bot) RegisterModules(modules ...dispatch.Module) error {
	if b.Persist != nil {
		if err := b.Persist.MarkUnverified(); err != nil {
			return fmt.Errorf("mark unverified: %w", err)
		}
	}
	for _, m := range modules {
		m.Register(b.Registry)
	}
	if b.Persist != nil {
		if err := b.Persist.PruneUnverified(); err != nil {
			return fmt.Errorf("prune unverified: %w", err)
		}
	}
	return nil
}

// Connect dials and logs in every configured account. A primary login
// failure aborts startup; slave failures follow the config flag.
func (b *Bot) Connect() error {
	for i, acct := range b.cfg.Accounts {
		c := conn.New(conn.Config{
			ID:         acct.ID,
			Username:   acct.Username,
			Password:   acct.Password,
			Character:  acct.Character,
			IsMain:     acct.IsMain || i == 0,
			Recovery:   b.cfg.Recovery(),
			Burst:      b.cfg.Burst,
			OnlineWait: b.cfg.CharacterOnlineWait(),
		})
		c.OnFailure = func(err error) {
			log.Printf("bot: connection %s failed: %v", c.Cfg.ID, err)
			b.status.Store(statusError)
		}
		if err := b.connectOne(c); err != nil {
			c.Close()
			if i == 0 {
				return fmt.Errorf("%w: primary %s: %v", ErrLoginFailure, acct.ID, err)
			}
			if b.cfg.IgnoreSlaveLoginFailure {
				log.Printf("bot: skipping slave %s: %v", acct.ID, err)
				continue
			}
			return fmt.Errorf("%w: slave %s: %v", ErrLoginFailure, acct.ID, err)
		}
		log.Printf("bot: logged in %s as %s (id %d)", c.Cfg.ID, c.CharName, c.CharID)
		b.conns = append(b.conns, c)
		if b.primary == nil {
			b.primary = c
		}
	}
	if b.hasSlaves() {
		b.massQueue = make(chan massMessage, 1000)
	}
	return nil
}

func (b *Bot) connectOne(c *conn.Conn) error {
	if err := c.Dial(b.cfg.Server, b.cfg.Port); err != nil {
		return err
	}
	return c.Login()
}

func (b *Bot) hasSlaves() bool {
	for _, c := range b.conns {
		if !c.Cfg.IsMain {
			return true
		}
	}
	return false
}

// Run starts the reader workers and the main dispatch loop, blocking until
// shutdown or error.
func (b *Bot) Run() error {
	b.status.Store(statusRunning)
	for _, c := range b.conns {
		c.Status = conn.StatusRunning
		go b.readLoop(c)
	}

	b.settle()
	b.Registry.Events.Fire(ConnectEvent, nil)
	log.Println("bot: startup complete")

	lastSecond := time.Now().Unix()
	for b.status.Load() == statusRunning {
		select {
		case in := <-b.incoming:
			b.Registry.Packets.Dispatch(in.conn, in.packet)
		case <-time.After(mainLoopPoll):
		}
		if now := time.Now(); now.Unix() != lastSecond {
			lastSecond = now.Unix()
			b.Sched.Check(now)
			b.Registry.Events.CheckTimers(now)
		}
	}

	for _, c := range b.conns {
		c.Close()
	}
	if b.status.Load() == statusError {
		return ErrRuntime
	}
	return nil
}

// settle drains the post-login packet flood (buddy sync, channel joins) so
// connect-event handlers see stable state. The flood counts as over after
// two consecutive empty polls.
func (b *Bot) settle() {
	empty := 0
	for empty < settlePolls {
		select {
		case in := <-b.incoming:
			empty = 0
			b.Registry.Packets.Dispatch(in.conn, in.packet)
		case <-time.After(mainLoopPoll):
			empty++
		}
	}
}

// readLoop reads one connection, pushing packets into the shared queue.
// Slave connections also drain the mass-message queue between reads so
// relaying never starves packet processing.
func (b *Bot) readLoop(c *conn.Conn) {
	for b.status.Load() == statusRunning {
		pkt, err := c.ReadPacket(mainLoopPoll)
		if err != nil {
			return
		}
		if pkt != nil {
			b.incoming <- inbound{conn: c, packet: pkt}
		}
		if !c.Cfg.IsMain {
			b.drainMassQueue(c)
		}
		if err := c.FlushQueue(); err != nil {
			return
		}
	}
}

func (b *Bot) drainMassQueue(c *conn.Conn) {
	if b.massQueue == nil {
		return
	}
	for {
		select {
		case m := <-b.massQueue:
			c.EnqueuePacket(conn.PriorityLow, protocol.NewPrivateMessage(m.charID, m.text, "\x00"))
		default:
			return
		}
	}
}

// CharacterName returns the cached name for a character id, if seen.
func (b *Bot) CharacterName(charID uint32) (string, bool) {
	name, ok := b.names[charID]
	return name, ok
}
