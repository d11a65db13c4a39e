package conn

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/auno/aobot/internal/protocol"
)

// pipeConn wires a connection to an in-memory pipe and returns the server
// side for the test to drive.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	c := New(Config{
		ID:        "test",
		Username:  "account",
		Password:  "secret",
		Character: "Botchar",
	})
	c.sock = client
	c.r = bufio.NewReader(client)
	now := time.Now()
	c.lastSent = now
	c.lastReceived = now
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return c, server
}

func writeFrame(t *testing.T, w net.Conn, id uint16, args ...any) {
	t.Helper()
	payload, err := protocol.EncodeArgs(protocol.ServerSchemas[id], args)
	if err != nil {
		t.Errorf("Encode frame %d failed: %v", id, err)
		return
	}
	if _, err := w.Write(protocol.AppendFrame(id, payload)); err != nil {
		t.Errorf("Write frame %d failed: %v", id, err)
	}
}

func readFrame(t *testing.T, r net.Conn) (uint16, []any) {
	t.Helper()
	id, payload, err := protocol.ReadFrame(r)
	if err != nil {
		t.Errorf("Read frame failed: %v", err)
		return 0, nil
	}
	args, err := protocol.DecodeArgs(protocol.ClientSchemas[id], payload)
	if err != nil {
		t.Errorf("Decode frame %d failed: %v", id, err)
		return id, nil
	}
	return id, args
}

func TestLoginHandshake(t *testing.T) {
	c, server := pipeConn(t)

	done := make(chan struct{})
	go func() {
		defer close(done)

		writeFrame(t, server, protocol.SLoginSeed, "a1b2c3d4")

		id, args := readFrame(t, server)
		if id != protocol.CLoginRequest {
			t.Errorf("Expected login request, got packet %d", id)
			return
		}
		if args[1].(string) != "account" {
			t.Errorf("Expected username 'account', got %q", args[1])
		}
		if args[2].(string) == "" {
			t.Error("Expected a non-empty login key")
		}

		writeFrame(t, server, protocol.SLoginCharacterList,
			[]uint32{1111, 2222}, []string{"Alt", "Botchar"}, []uint32{100, 220}, []uint32{0, 0})

		id, args = readFrame(t, server)
		if id != protocol.CLoginSelect {
			t.Errorf("Expected login select, got packet %d", id)
			return
		}
		if args[0].(uint32) != 2222 {
			t.Errorf("Expected character id 2222, got %v", args[0])
		}

		writeFrame(t, server, protocol.SLoginOK)
	}()

	if err := c.Login(); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	<-done

	if c.CharID != 2222 {
		t.Errorf("Expected CharID 2222, got %d", c.CharID)
	}
	if c.CharName != "Botchar" {
		t.Errorf("Expected CharName 'Botchar', got %q", c.CharName)
	}
	if c.Status != StatusAuthenticated {
		t.Errorf("Expected StatusAuthenticated, got %v", c.Status)
	}
}

func TestLoginRejected(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		writeFrame(t, server, protocol.SLoginSeed, "a1b2c3d4")
		readFrame(t, server)
		writeFrame(t, server, protocol.SLoginError, "Account blocked")
	}()

	err := c.Login()
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Expected ErrLoginFailed, got %v", err)
	}
}

func TestLoginUnknownCharacter(t *testing.T) {
	c, server := pipeConn(t)

	go func() {
		writeFrame(t, server, protocol.SLoginSeed, "a1b2c3d4")
		readFrame(t, server)
		writeFrame(t, server, protocol.SLoginCharacterList,
			[]uint32{1111}, []string{"Somebodyelse"}, []uint32{100}, []uint32{0})
	}()

	err := c.Login()
	if !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("Expected ErrLoginFailed, got %v", err)
	}
}

func TestReadPacketDecodesFrames(t *testing.T) {
	c, server := pipeConn(t)

	go writeFrame(t, server, protocol.SPrivateMessage, uint32(1234), "hello", "\x00")

	pkt, err := c.ReadPacket(time.Second)
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	msg, ok := pkt.(*protocol.PrivateMessage)
	if !ok {
		t.Fatalf("Expected *PrivateMessage, got %T", pkt)
	}
	if msg.CharID != 1234 || msg.Message != "hello" {
		t.Errorf("Unexpected message: %+v", msg)
	}
}

func TestReadPacketTimeoutIsNotAnError(t *testing.T) {
	c, _ := pipeConn(t)

	pkt, err := c.ReadPacket(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Expected quiet timeout, got %v", err)
	}
	if pkt != nil {
		t.Errorf("Expected no packet, got %T", pkt)
	}
}

func TestFailureCallbackFiresOnce(t *testing.T) {
	c, server := pipeConn(t)

	calls := 0
	c.OnFailure = func(err error) { calls++ }

	server.Close()
	if _, err := c.ReadPacket(time.Second); err == nil {
		t.Fatal("Expected read error on closed pipe")
	}
	if _, err := c.ReadPacket(time.Second); err == nil {
		t.Fatal("Expected read error on closed pipe")
	}
	if calls != 1 {
		t.Errorf("Expected failure callback once, got %d", calls)
	}
	if c.Status != StatusError {
		t.Errorf("Expected StatusError, got %v", c.Status)
	}
}
