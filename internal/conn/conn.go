// Package conn owns one authenticated socket to the chat server: framed
// packet I/O, the login handshake, keepalive and the rate-limited outgoing
// queue.
package conn

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/auno/aobot/internal/crypto"
	"github.com/auno/aobot/internal/protocol"
)

// Status is the connection's lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusAwaitingSeed
	StatusAwaitingCharList
	StatusSelectingCharacter
	StatusAuthenticated
	StatusRunning
	StatusError
)

var (
	ErrConnectionDead = errors.New("conn: no packet received within the silence limit")
	ErrLoginFailed    = errors.New("conn: login failed")
)

const (
	dialTimeout  = 10 * time.Second
	loginTimeout = 10 * time.Second

	// Keepalive: ping proactively after this much send silence, declare
	// the connection dead after this much receive silence.
	pingAfter = 60 * time.Second
	deadAfter = 90 * time.Second
)

// Config tunes one connection.
type Config struct {
	ID         string
	Username   string
	Password   string
	Character  string
	IsMain     bool
	Recovery   time.Duration // min spacing between sends
	Burst      float64       // banked-credit multiplier
	OnlineWait time.Duration // grace before selecting an already-online character
}

// Conn is one bot slot's authenticated session.
type Conn struct {
	Cfg    Config
	Status Status

	CharID   uint32
	CharName string
	OrgID    uint32
	OrgName  string

	// Derived state maintained by the runtime's packet handlers.
	Channels              map[uint64]string
	PrivateChannelMembers map[uint32]bool
	Buddies               map[uint32]bool

	// Data is a per-connection extension bag for feature modules.
	Data map[string]any

	Queue *OutgoingQueue

	sock    net.Conn
	r       *bufio.Reader
	writeMu sync.Mutex

	lastSent     time.Time
	lastReceived time.Time

	// OnFailure is invoked once on an unrecoverable I/O error.
	OnFailure func(err error)
}

// New prepares a connection for Dial.
func New(cfg Config) *Conn {
	if cfg.Recovery <= 0 {
		cfg.Recovery = 2 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2.5
	}
	return &Conn{
		Cfg:                   cfg,
		Channels:              make(map[uint64]string),
		PrivateChannelMembers: make(map[uint32]bool),
		Buddies:               make(map[uint32]bool),
		Data:                  make(map[string]any),
		Queue:                 NewOutgoingQueue(cfg.Recovery, cfg.Burst),
	}
}

// Dial opens the TCP socket.
func (c *Conn) Dial(host string, port int) error {
	c.Status = StatusConnecting
	sock, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), dialTimeout)
	if err != nil {
		c.Status = StatusError
		return fmt.Errorf("conn %s: dial: %w", c.Cfg.ID, err)
	}
	c.sock = sock
	c.r = bufio.NewReader(sock)
	now := time.Now()
	c.lastSent = now
	c.lastReceived = now
	return nil
}

// Login runs the fixed four-step handshake: seed → request →
// char-list-or-error → select → ok-or-error.
func (c *Conn) Login() error {
	c.Status = StatusAwaitingSeed
	pkt, err := c.readBlocking(loginTimeout)
	if err != nil {
		return fmt.Errorf("%w: waiting for seed: %v", ErrLoginFailed, err)
	}
	seed, ok := pkt.(*protocol.LoginSeed)
	if !ok {
		return fmt.Errorf("%w: expected login seed, got packet %d", ErrLoginFailed, pkt.PacketID())
	}

	key, err := crypto.GenerateLoginKey(seed.Seed, c.Cfg.Username, c.Cfg.Password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}
	if err := c.SendPacket(protocol.NewLoginRequest(c.Cfg.Username, key)); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	c.Status = StatusAwaitingCharList
	pkt, err = c.readBlocking(loginTimeout)
	if err != nil {
		return fmt.Errorf("%w: waiting for character list: %v", ErrLoginFailed, err)
	}
	var list *protocol.LoginCharacterList
	switch p := pkt.(type) {
	case *protocol.LoginCharacterList:
		list = p
	case *protocol.LoginError:
		return fmt.Errorf("%w: %s", ErrLoginFailed, p.Message)
	default:
		return fmt.Errorf("%w: expected character list, got packet %d", ErrLoginFailed, pkt.PacketID())
	}

	idx := -1
	for i, name := range list.Names {
		if strings.EqualFold(name, c.Cfg.Character) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: character %q not on account %q", ErrLoginFailed, c.Cfg.Character, c.Cfg.Username)
	}

	c.Status = StatusSelectingCharacter
	if list.Online[idx] != 0 && c.Cfg.OnlineWait > 0 {
		// The server rejects selecting a character it still considers
		// online; wait out the grace period first.
		log.Printf("conn %s: character %s still online, waiting %s", c.Cfg.ID, list.Names[idx], c.Cfg.OnlineWait)
		time.Sleep(c.Cfg.OnlineWait)
	}
	if err := c.SendPacket(protocol.NewLoginSelect(list.CharIDs[idx])); err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	pkt, err = c.readBlocking(loginTimeout)
	if err != nil {
		return fmt.Errorf("%w: waiting for login ok: %v", ErrLoginFailed, err)
	}
	switch p := pkt.(type) {
	case *protocol.LoginOK:
		c.CharID = list.CharIDs[idx]
		c.CharName = list.Names[idx]
		c.Status = StatusAuthenticated
		return nil
	case *protocol.LoginError:
		return fmt.Errorf("%w: %s", ErrLoginFailed, p.Message)
	default:
		return fmt.Errorf("%w: expected login ok, got packet %d", ErrLoginFailed, pkt.PacketID())
	}
}

// ReadPacket waits up to timeout for one packet. It returns (nil, nil) when
// no packet arrived or the one that did failed to decode; decode errors are
// a per-packet problem, not a connection problem. Keepalive runs on the
// timeout path: ping after send silence, fail the connection after receive
// silence.
func (c *Conn) ReadPacket(timeout time.Duration) (protocol.ServerPacket, error) {
	if err := c.sock.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, c.fail(err)
	}
	if _, err := c.r.Peek(1); err != nil {
		if isTimeout(err) {
			return nil, c.keepalive()
		}
		return nil, c.fail(err)
	}
	// Data is ready; allow a generous deadline for the frame body.
	if err := c.sock.SetReadDeadline(time.Now().Add(loginTimeout)); err != nil {
		return nil, c.fail(err)
	}
	id, payload, err := protocol.ReadFrame(c.r)
	if err != nil {
		return nil, c.fail(err)
	}
	c.lastReceived = time.Now()
	pkt, err := protocol.DecodeServerPacket(id, payload)
	if err != nil {
		log.Printf("conn %s: %v", c.Cfg.ID, err)
		return nil, nil
	}
	return pkt, nil
}

func (c *Conn) keepalive() error {
	now := time.Now()
	if now.Sub(c.lastReceived) > deadAfter {
		return c.fail(ErrConnectionDead)
	}
	if now.Sub(c.lastSent) > pingAfter {
		if err := c.SendPacket(protocol.NewPing(c.Cfg.ID)); err != nil {
			return err
		}
	}
	return nil
}

// SendPacket encodes, frames and writes a packet immediately, bypassing the
// outgoing queue. Safe for concurrent callers.
func (c *Conn) SendPacket(p *protocol.ClientPacket) error {
	data, err := p.Encode()
	if err != nil {
		// An encode error is a bug in the caller, not an I/O failure.
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(data) > 0 {
		n, err := c.sock.Write(data)
		if err != nil {
			return c.fail(err)
		}
		data = data[n:]
	}
	c.lastSent = time.Now()
	return nil
}

// EnqueuePacket places a packet on the rate-limited outgoing queue.
func (c *Conn) EnqueuePacket(priority int, p *protocol.ClientPacket) {
	c.Queue.Enqueue(priority, p)
}

// FlushQueue sends every packet the rate limiter releases right now.
func (c *Conn) FlushQueue() error {
	for {
		p := c.Queue.Dequeue()
		if p == nil {
			return nil
		}
		if err := c.SendPacket(p); err != nil {
			return err
		}
	}
}

// Close tears down the socket.
func (c *Conn) Close() error {
	c.Status = StatusDisconnected
	if c.sock != nil {
		return c.sock.Close()
	}
	return nil
}

// readBlocking reads exactly one decodable packet or errors out; used by
// the login handshake where every step expects a reply.
func (c *Conn) readBlocking(timeout time.Duration) (protocol.ServerPacket, error) {
	deadline := time.Now().Add(timeout)
	for {
		if !time.Now().Before(deadline) {
			return nil, errors.New("timed out")
		}
		if err := c.sock.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		id, payload, err := protocol.ReadFrame(c.r)
		if err != nil {
			return nil, err
		}
		c.lastReceived = time.Now()
		pkt, err := protocol.DecodeServerPacket(id, payload)
		if err != nil {
			log.Printf("conn %s: %v", c.Cfg.ID, err)
			continue
		}
		return pkt, nil
	}
}

func (c *Conn) fail(err error) error {
	if c.Status != StatusError {
		c.Status = StatusError
		if c.OnFailure != nil {
			c.OnFailure(err)
		}
	}
	return err
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
