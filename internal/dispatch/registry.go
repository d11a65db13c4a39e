package dispatch

import (
	"log"
	"strconv"

	"github.com/auno/aobot/internal/store"
)

// Registry is the surface feature modules register against during the
// startup phase. Modules implement Module and are invoked in load order;
// there is no runtime discovery.
type Registry struct {
	Packets  *PacketTable
	Events   *EventBus
	Commands *CommandRouter
	Access   *AccessRegistry

	persist  *store.Registry // nil without persistence
	settings map[string]string
}

// Module is the explicit registration contract for feature modules.
type Module interface {
	Register(r *Registry)
}

func NewRegistry(persist *store.Registry, templates TemplateSource, commandSymbol string) *Registry {
	access := NewAccessRegistry()
	return &Registry{
		Packets:  NewPacketTable(templates),
		Events:   NewEventBus(persist),
		Commands: NewCommandRouter(access, persist, commandSymbol),
		Access:   access,
		persist:  persist,
		settings: make(map[string]string),
	}
}

// TemplateSource aliases the protocol interface so modules only import
// dispatch.
type TemplateSource = interface {
	Template(category, instance int64) (string, bool)
}

// RegisterSetting declares a persisted setting with a default, returning
// the effective (possibly admin-edited) value.
func (r *Registry) RegisterSetting(name, defaultValue, kind string) string {
	value := defaultValue
	if r.persist != nil {
		v, err := r.persist.VerifySetting(name, defaultValue, kind)
		if err != nil {
			log.Printf("setting %q: %v", name, err)
		} else {
			value = v
		}
	}
	r.settings[name] = value
	return value
}

// Setting returns the current value of a registered setting.
func (r *Registry) Setting(name string) string {
	return r.settings[name]
}

// SettingInt returns a number setting, or def when unset or malformed.
func (r *Registry) SettingInt(name string, def int) int {
	v, ok := r.settings[name]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// SettingBool returns a boolean setting, or def when unset or malformed.
func (r *Registry) SettingBool(name string, def bool) bool {
	v, ok := r.settings[name]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// SetSetting updates a registered setting in memory and in the store.
func (r *Registry) SetSetting(name, value string) error {
	if r.persist != nil {
		if err := r.persist.SetSetting(name, value); err != nil {
			return err
		}
	}
	r.settings[name] = value
	return nil
}
