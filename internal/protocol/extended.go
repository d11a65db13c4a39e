package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Extended messages are compressed references into the game's offline
// string database: a category/instance pair naming a printf-style template
// plus a list of typed parameters. System messages are always encoded this
// way; public channel messages only when wrapped in "~&...~".

// TemplateSource resolves a category/instance pair to its template string.
type TemplateSource interface {
	Template(category, instance int64) (string, bool)
}

// ExtendedMessage is a resolved (or best-effort resolved) extended message.
type ExtendedMessage struct {
	CategoryID int64
	InstanceID int64
	Template   string
	Params     []any
	message    string
}

// GetMessage returns the human-readable form: the template with parameters
// substituted, or the raw template when substitution is not possible.
func (e *ExtendedMessage) GetMessage() string {
	return e.message
}

// The system-message category is implicit on the wire.
const systemMessageCategory = 20000

// IsExtendedPayload reports whether a channel message payload carries an
// embedded extended message.
func IsExtendedPayload(s string) bool {
	return strings.HasPrefix(s, "~&") && strings.HasSuffix(s, "~")
}

// ParseExtendedPayload decodes a "~&...~" wrapped message: base-85 category
// and instance ids followed by encoded parameters.
func ParseExtendedPayload(payload string, src TemplateSource) (*ExtendedMessage, error) {
	if !IsExtendedPayload(payload) {
		return nil, fmt.Errorf("protocol: not an extended message payload")
	}
	body := []byte(payload[2 : len(payload)-1])
	if len(body) < 10 {
		return nil, fmt.Errorf("%w: extended message ids", ErrShortBuffer)
	}
	category := decodeBase85(body[0:5])
	instance := decodeBase85(body[5:10])
	params, err := decodeExtendedParams(body[10:], src)
	if err != nil {
		return nil, err
	}
	return NewExtendedMessage(category, instance, params, src), nil
}

// ParseSystemMessage decodes a SystemMessage payload, whose category is
// implicit and whose instance id rides in the packet itself.
func ParseSystemMessage(instance uint32, paramBlob string, src TemplateSource) (*ExtendedMessage, error) {
	params, err := decodeExtendedParams([]byte(paramBlob), src)
	if err != nil {
		return nil, err
	}
	return NewExtendedMessage(systemMessageCategory, int64(instance), params, src), nil
}

// NewExtendedMessage resolves the template and substitutes params. A failed
// template lookup degrades to a raw category/instance rendering instead of
// an error, so malformed or unknown references never break dispatch.
func NewExtendedMessage(category, instance int64, params []any, src TemplateSource) *ExtendedMessage {
	e := &ExtendedMessage{CategoryID: category, InstanceID: instance, Params: params}
	tmpl, ok := src.Template(category, instance)
	if !ok {
		e.Template = ""
		e.message = fmt.Sprintf("Unknown message %d:%d %v", category, instance, params)
		return e
	}
	e.Template = tmpl
	e.message = substituteTemplate(tmpl, params)
	return e
}

func decodeBase85(b []byte) int64 {
	var n int64
	for _, c := range b {
		n = n*85 + int64(c) - 33
	}
	return n
}

func decodeExtendedParams(blob []byte, src TemplateSource) ([]any, error) {
	var params []any
	for len(blob) > 0 {
		tag := blob[0]
		blob = blob[1:]
		switch tag {
		case 'S':
			if len(blob) < 2 {
				return nil, fmt.Errorf("%w: extended S length", ErrShortBuffer)
			}
			n := int(binary.BigEndian.Uint16(blob))
			blob = blob[2:]
			if len(blob) < n {
				return nil, fmt.Errorf("%w: extended S body", ErrShortBuffer)
			}
			params = append(params, string(blob[:n]))
			blob = blob[n:]
		case 's':
			if len(blob) < 1 {
				return nil, fmt.Errorf("%w: extended s length", ErrShortBuffer)
			}
			n := int(blob[0])
			blob = blob[1:]
			if len(blob) < n {
				return nil, fmt.Errorf("%w: extended s body", ErrShortBuffer)
			}
			params = append(params, string(blob[:n]))
			blob = blob[n:]
		case 'I':
			if len(blob) < 4 {
				return nil, fmt.Errorf("%w: extended I", ErrShortBuffer)
			}
			params = append(params, int64(binary.BigEndian.Uint32(blob)))
			blob = blob[4:]
		case 'i', 'u':
			if len(blob) < 5 {
				return nil, fmt.Errorf("%w: extended %c", ErrShortBuffer, tag)
			}
			params = append(params, decodeBase85(blob[:5]))
			blob = blob[5:]
		case 'R':
			if len(blob) < 10 {
				return nil, fmt.Errorf("%w: extended R", ErrShortBuffer)
			}
			category := decodeBase85(blob[0:5])
			instance := decodeBase85(blob[5:10])
			blob = blob[10:]
			params = append(params, resolveReference(category, instance, src))
		case 'l':
			if len(blob) < 4 {
				return nil, fmt.Errorf("%w: extended l", ErrShortBuffer)
			}
			instance := int64(binary.BigEndian.Uint32(blob))
			blob = blob[4:]
			params = append(params, resolveReference(systemMessageCategory, instance, src))
		default:
			return nil, fmt.Errorf("%w: extended param tag %q", ErrUnknownType, string(tag))
		}
	}
	return params, nil
}

func resolveReference(category, instance int64, src TemplateSource) string {
	if tmpl, ok := src.Template(category, instance); ok {
		return tmpl
	}
	return fmt.Sprintf("{%d:%d}", category, instance)
}

// substituteTemplate performs printf-style substitution with %s, %d, %u and
// %%. If the placeholder count does not match the parameter count, the raw
// template is returned unchanged.
func substituteTemplate(tmpl string, params []any) string {
	if countPlaceholders(tmpl) != len(params) {
		return tmpl
	}
	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '%' || i+1 >= len(tmpl) {
			b.WriteByte(tmpl[i])
			continue
		}
		switch tmpl[i+1] {
		case '%':
			b.WriteByte('%')
			i++
		case 's', 'd', 'u':
			b.WriteString(fmt.Sprint(params[next]))
			next++
			i++
		default:
			b.WriteByte(tmpl[i])
		}
	}
	return b.String()
}

func countPlaceholders(tmpl string) int {
	n := 0
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '%' {
			continue
		}
		switch tmpl[i+1] {
		case 's', 'd', 'u':
			n++
			i++
		case '%':
			i++
		}
	}
	return n
}

// MapTemplateSource is an in-memory TemplateSource, keyed "category:instance".
type MapTemplateSource map[string]string

func (m MapTemplateSource) Template(category, instance int64) (string, bool) {
	s, ok := m[fmt.Sprintf("%d:%d", category, instance)]
	return s, ok
}
