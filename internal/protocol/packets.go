package protocol

import "fmt"

// Server→client packet type ids.
const (
	SLoginSeed                  uint16 = 0
	SLoginOK                    uint16 = 5
	SLoginError                 uint16 = 6
	SLoginCharacterList         uint16 = 7
	SCharacterUnknown           uint16 = 10
	SCharacterName              uint16 = 20
	SCharacterLookup            uint16 = 21
	SPrivateMessage             uint16 = 30
	SVicinityMessage            uint16 = 34
	SBroadcastMessage           uint16 = 35
	SSimpleSystemMessage        uint16 = 36
	SSystemMessage              uint16 = 37
	SBuddyAdded                 uint16 = 40
	SBuddyRemoved               uint16 = 41
	SPrivateChannelInvited      uint16 = 50
	SPrivateChannelKicked       uint16 = 51
	SPrivateChannelLeft         uint16 = 53
	SPrivateChannelClientJoined uint16 = 55
	SPrivateChannelClientLeft   uint16 = 56
	SPrivateChannelMessage      uint16 = 57
	SPrivateChannelInviteRefuse uint16 = 58
	SPublicChannelJoined        uint16 = 60
	SPublicChannelLeft          uint16 = 61
	SPublicChannelMessage       uint16 = 65
	SPong                       uint16 = 100
)

// Client→server packet type ids. These share numbers with the server
// catalog but are a disjoint id space.
const (
	CLoginRequest          uint16 = 2
	CLoginSelect           uint16 = 3
	CCharacterLookup       uint16 = 21
	CPrivateMessage        uint16 = 30
	CBuddyAdd              uint16 = 40
	CBuddyRemove           uint16 = 41
	CPrivateChannelInvite  uint16 = 50
	CPrivateChannelKick    uint16 = 51
	CPrivateChannelJoin    uint16 = 52
	CPrivateChannelLeave   uint16 = 53
	CPrivateChannelKickAll uint16 = 54
	CPrivateChannelMessage uint16 = 57
	CPublicChannelMessage  uint16 = 65
	CPing                  uint16 = 100
	CChatCommand           uint16 = 120
)

// ServerSchemas maps server packet ids to their argument schema.
var ServerSchemas = map[uint16]string{
	SLoginSeed:                  "S",
	SLoginOK:                    "",
	SLoginError:                 "S",
	SLoginCharacterList:         "isii",
	SCharacterUnknown:           "I",
	SCharacterName:              "IS",
	SCharacterLookup:            "IS",
	SPrivateMessage:             "ISS",
	SVicinityMessage:            "ISS",
	SBroadcastMessage:           "SSS",
	SSimpleSystemMessage:        "S",
	SSystemMessage:              "IIIS",
	SBuddyAdded:                 "IIS",
	SBuddyRemoved:               "I",
	SPrivateChannelInvited:      "I",
	SPrivateChannelKicked:       "I",
	SPrivateChannelLeft:         "I",
	SPrivateChannelClientJoined: "II",
	SPrivateChannelClientLeft:   "II",
	SPrivateChannelMessage:      "IISS",
	SPrivateChannelInviteRefuse: "II",
	SPublicChannelJoined:        "GSIS",
	SPublicChannelLeft:          "G",
	SPublicChannelMessage:       "GISS",
	SPong:                       "S",
}

// ClientSchemas maps client packet ids to their argument schema.
var ClientSchemas = map[uint16]string{
	CLoginRequest:          "ISS",
	CLoginSelect:           "I",
	CCharacterLookup:       "S",
	CPrivateMessage:        "ISS",
	CBuddyAdd:              "IS",
	CBuddyRemove:           "I",
	CPrivateChannelInvite:  "I",
	CPrivateChannelKick:    "I",
	CPrivateChannelJoin:    "I",
	CPrivateChannelLeave:   "I",
	CPrivateChannelKickAll: "",
	CPrivateChannelMessage: "ISS",
	CPublicChannelMessage:  "GSS",
	CPing:                  "S",
	CChatCommand:           "s",
}

// Org channels encode category 3 in the high 32 bits of the channel id;
// the low 32 bits are the org id.
const orgChannelCategory = 3

func IsOrgChannel(channelID uint64) bool {
	return channelID>>32 == orgChannelCategory
}

func OrgChannelID(orgID uint32) uint64 {
	return orgChannelCategory<<32 | uint64(orgID)
}

// ServerPacket is implemented by every decoded server→client packet.
type ServerPacket interface {
	PacketID() uint16
}

type LoginSeed struct{ Seed string }

type LoginOK struct{}

type LoginError struct{ Message string }

type LoginCharacterList struct {
	CharIDs []uint32
	Names   []string
	Levels  []uint32
	Online  []uint32
}

type CharacterUnknown struct{ CharID uint32 }

type CharacterName struct {
	CharID uint32
	Name   string
}

type CharacterLookupResult struct {
	CharID uint32
	Name   string
}

type PrivateMessage struct {
	CharID  uint32
	Message string
	Blob    string
}

type VicinityMessage struct {
	CharID  uint32
	Message string
	Blob    string
}

type BroadcastMessage struct {
	Source  string
	Message string
	Blob    string
}

type SimpleSystemMessage struct{ Message string }

// SystemMessage payloads are always extended-message encoded: NoticeID is
// the instance id in the implicit system category, Params the encoded
// parameter blob. Extended is populated by the dispatch preprocessing pass.
type SystemMessage struct {
	ClientID uint32
	WindowID uint32
	NoticeID uint32
	Params   string
	Extended *ExtendedMessage
}

type BuddyAdded struct {
	CharID uint32
	Online uint32
	Status string
}

type BuddyRemoved struct{ CharID uint32 }

type PrivateChannelInvited struct{ ChannelID uint32 }

type PrivateChannelKicked struct{ ChannelID uint32 }

type PrivateChannelLeft struct{ ChannelID uint32 }

type PrivateChannelClientJoined struct {
	ChannelID uint32
	CharID    uint32
}

type PrivateChannelClientLeft struct {
	ChannelID uint32
	CharID    uint32
}

type PrivateChannelMessage struct {
	ChannelID uint32
	CharID    uint32
	Message   string
	Blob      string
}

type PrivateChannelInviteRefused struct {
	ChannelID uint32
	CharID    uint32
}

type PublicChannelJoined struct {
	ChannelID uint64
	Name      string
	Unknown   uint32
	Flags     string
}

type PublicChannelLeft struct{ ChannelID uint64 }

type PublicChannelMessage struct {
	ChannelID uint64
	CharID    uint32
	Message   string
	Blob      string
	Extended  *ExtendedMessage
}

type Pong struct{ Message string }

func (LoginSeed) PacketID() uint16                   { return SLoginSeed }
func (LoginOK) PacketID() uint16                     { return SLoginOK }
func (LoginError) PacketID() uint16                  { return SLoginError }
func (LoginCharacterList) PacketID() uint16          { return SLoginCharacterList }
func (CharacterUnknown) PacketID() uint16            { return SCharacterUnknown }
func (CharacterName) PacketID() uint16               { return SCharacterName }
func (CharacterLookupResult) PacketID() uint16       { return SCharacterLookup }
func (PrivateMessage) PacketID() uint16              { return SPrivateMessage }
func (VicinityMessage) PacketID() uint16             { return SVicinityMessage }
func (BroadcastMessage) PacketID() uint16            { return SBroadcastMessage }
func (SimpleSystemMessage) PacketID() uint16         { return SSimpleSystemMessage }
func (SystemMessage) PacketID() uint16               { return SSystemMessage }
func (BuddyAdded) PacketID() uint16                  { return SBuddyAdded }
func (BuddyRemoved) PacketID() uint16                { return SBuddyRemoved }
func (PrivateChannelInvited) PacketID() uint16       { return SPrivateChannelInvited }
func (PrivateChannelKicked) PacketID() uint16        { return SPrivateChannelKicked }
func (PrivateChannelLeft) PacketID() uint16          { return SPrivateChannelLeft }
func (PrivateChannelClientJoined) PacketID() uint16  { return SPrivateChannelClientJoined }
func (PrivateChannelClientLeft) PacketID() uint16    { return SPrivateChannelClientLeft }
func (PrivateChannelMessage) PacketID() uint16       { return SPrivateChannelMessage }
func (PrivateChannelInviteRefused) PacketID() uint16 { return SPrivateChannelInviteRefuse }
func (PublicChannelJoined) PacketID() uint16         { return SPublicChannelJoined }
func (PublicChannelLeft) PacketID() uint16           { return SPublicChannelLeft }
func (PublicChannelMessage) PacketID() uint16        { return SPublicChannelMessage }
func (Pong) PacketID() uint16                        { return SPong }

// DecodeServerPacket decodes a framed payload into its typed packet.
// Unknown ids are returned as an error so the caller can log and skip.
func DecodeServerPacket(id uint16, payload []byte) (ServerPacket, error) {
	schema, ok := ServerSchemas[id]
	if !ok {
		return nil, fmt.Errorf("%w: server packet id %d", ErrUnknownType, id)
	}
	args, err := DecodeArgs(schema, payload)
	if err != nil {
		return nil, fmt.Errorf("packet id %d: %w", id, err)
	}
	switch id {
	case SLoginSeed:
		return &LoginSeed{Seed: args[0].(string)}, nil
	case SLoginOK:
		return &LoginOK{}, nil
	case SLoginError:
		return &LoginError{Message: args[0].(string)}, nil
	case SLoginCharacterList:
		return &LoginCharacterList{
			CharIDs: args[0].([]uint32),
			Names:   args[1].([]string),
			Levels:  args[2].([]uint32),
			Online:  args[3].([]uint32),
		}, nil
	case SCharacterUnknown:
		return &CharacterUnknown{CharID: args[0].(uint32)}, nil
	case SCharacterName:
		return &CharacterName{CharID: args[0].(uint32), Name: args[1].(string)}, nil
	case SCharacterLookup:
		return &CharacterLookupResult{CharID: args[0].(uint32), Name: args[1].(string)}, nil
	case SPrivateMessage:
		return &PrivateMessage{CharID: args[0].(uint32), Message: args[1].(string), Blob: args[2].(string)}, nil
	case SVicinityMessage:
		return &VicinityMessage{CharID: args[0].(uint32), Message: args[1].(string), Blob: args[2].(string)}, nil
	case SBroadcastMessage:
		return &BroadcastMessage{Source: args[0].(string), Message: args[1].(string), Blob: args[2].(string)}, nil
	case SSimpleSystemMessage:
		return &SimpleSystemMessage{Message: args[0].(string)}, nil
	case SSystemMessage:
		return &SystemMessage{
			ClientID: args[0].(uint32),
			WindowID: args[1].(uint32),
			NoticeID: args[2].(uint32),
			Params:   args[3].(string),
		}, nil
	case SBuddyAdded:
		return &BuddyAdded{CharID: args[0].(uint32), Online: args[1].(uint32), Status: args[2].(string)}, nil
	case SBuddyRemoved:
		return &BuddyRemoved{CharID: args[0].(uint32)}, nil
	case SPrivateChannelInvited:
		return &PrivateChannelInvited{ChannelID: args[0].(uint32)}, nil
	case SPrivateChannelKicked:
		return &PrivateChannelKicked{ChannelID: args[0].(uint32)}, nil
	case SPrivateChannelLeft:
		return &PrivateChannelLeft{ChannelID: args[0].(uint32)}, nil
	case SPrivateChannelClientJoined:
		return &PrivateChannelClientJoined{ChannelID: args[0].(uint32), CharID: args[1].(uint32)}, nil
	case SPrivateChannelClientLeft:
		return &PrivateChannelClientLeft{ChannelID: args[0].(uint32), CharID: args[1].(uint32)}, nil
	case SPrivateChannelMessage:
		return &PrivateChannelMessage{
			ChannelID: args[0].(uint32),
			CharID:    args[1].(uint32),
			Message:   args[2].(string),
			Blob:      args[3].(string),
		}, nil
	case SPrivateChannelInviteRefuse:
		return &PrivateChannelInviteRefused{ChannelID: args[0].(uint32), CharID: args[1].(uint32)}, nil
	case SPublicChannelJoined:
		return &PublicChannelJoined{
			ChannelID: args[0].(uint64),
			Name:      args[1].(string),
			Unknown:   args[2].(uint32),
			Flags:     args[3].(string),
		}, nil
	case SPublicChannelLeft:
		return &PublicChannelLeft{ChannelID: args[0].(uint64)}, nil
	case SPublicChannelMessage:
		return &PublicChannelMessage{
			ChannelID: args[0].(uint64),
			CharID:    args[1].(uint32),
			Message:   args[2].(string),
			Blob:      args[3].(string),
		}, nil
	case SPong:
		return &Pong{Message: args[0].(string)}, nil
	}
	return nil, fmt.Errorf("%w: server packet id %d", ErrUnknownType, id)
}

// ClientPacket is an outbound packet ready to encode.
type ClientPacket struct {
	ID   uint16
	Args []any
}

// Encode frames the packet for the wire.
func (p *ClientPacket) Encode() ([]byte, error) {
	schema, ok := ClientSchemas[p.ID]
	if !ok {
		return nil, fmt.Errorf("%w: client packet id %d", ErrUnknownType, p.ID)
	}
	payload, err := EncodeArgs(schema, p.Args)
	if err != nil {
		return nil, fmt.Errorf("packet id %d: %w", p.ID, err)
	}
	return AppendFrame(p.ID, payload), nil
}

func NewLoginRequest(username, key string) *ClientPacket {
	return &ClientPacket{ID: CLoginRequest, Args: []any{uint32(0), username, key}}
}

func NewLoginSelect(charID uint32) *ClientPacket {
	return &ClientPacket{ID: CLoginSelect, Args: []any{charID}}
}

func NewCharacterLookup(name string) *ClientPacket {
	return &ClientPacket{ID: CCharacterLookup, Args: []any{name}}
}

func NewPrivateMessage(charID uint32, message, blob string) *ClientPacket {
	return &ClientPacket{ID: CPrivateMessage, Args: []any{charID, message, blob}}
}

func NewBuddyAdd(charID uint32) *ClientPacket {
	return &ClientPacket{ID: CBuddyAdd, Args: []any{charID, "\x01"}}
}

func NewBuddyRemove(charID uint32) *ClientPacket {
	return &ClientPacket{ID: CBuddyRemove, Args: []any{charID}}
}

func NewPrivateChannelInvite(charID uint32) *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelInvite, Args: []any{charID}}
}

func NewPrivateChannelKick(charID uint32) *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelKick, Args: []any{charID}}
}

func NewPrivateChannelJoin(channelID uint32) *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelJoin, Args: []any{channelID}}
}

func NewPrivateChannelLeave(channelID uint32) *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelLeave, Args: []any{channelID}}
}

func NewPrivateChannelKickAll() *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelKickAll}
}

func NewPrivateChannelMessage(channelID uint32, message, blob string) *ClientPacket {
	return &ClientPacket{ID: CPrivateChannelMessage, Args: []any{channelID, message, blob}}
}

func NewPublicChannelMessage(channelID uint64, message, blob string) *ClientPacket {
	return &ClientPacket{ID: CPublicChannelMessage, Args: []any{channelID, message, blob}}
}

func NewPing(message string) *ClientPacket {
	return &ClientPacket{ID: CPing, Args: []any{message}}
}

func NewChatCommand(parts ...string) *ClientPacket {
	return &ClientPacket{ID: CChatCommand, Args: []any{parts}}
}
