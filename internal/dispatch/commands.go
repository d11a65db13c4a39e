package dispatch

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/auno/aobot/internal/store"
)

// Channel identifies where a command line arrived.
type Channel string

const (
	ChannelPrivateMessage Channel = "private_message"
	ChannelOrg            Channel = "org_channel"
	ChannelPrivateChannel Channel = "private_channel"
)

// Standard replies. Access denial deliberately does not reveal whether the
// command exists.
const (
	replyUnknownCommand = "Unknown command."
	replyAccessDenied   = "Access denied."
	replyInvalidSyntax  = "Invalid syntax."
	replyInternalError  = "There was an error processing your request."
)

// CommandContext is what a command handler receives.
type CommandContext struct {
	CharID  uint32
	Name    string
	Channel Channel
	Args    map[string]string
	// Reply sends back to wherever the command came from. It accepts a
	// string or a text.Blob.
	Reply func(msg any)
}

// CommandHandler runs one matched command.
type CommandHandler func(ctx *CommandContext)

type commandEntry struct {
	re      *regexp.Regexp
	handler CommandHandler
	help    string
}

type commandConfig struct {
	command     string
	subCommand  string
	channel     Channel
	accessLevel string
	enabled     bool
	handlers    []*commandEntry
}

// CommandRouter matches inbound chat lines to registered commands with
// access gating, alias resolution and persisted enable/disable state.
type CommandRouter struct {
	access   *AccessRegistry
	registry *store.Registry // nil when running without persistence
	symbol   string
	configs  map[string][]*commandConfig // command|channel → configs
	aliases  map[string]string
	banned   func(charID uint32) bool
}

func NewCommandRouter(access *AccessRegistry, registry *store.Registry, symbol string) *CommandRouter {
	r := &CommandRouter{
		access:   access,
		registry: registry,
		symbol:   symbol,
		configs:  make(map[string][]*commandConfig),
		aliases:  make(map[string]string),
		banned:   func(uint32) bool { return false },
	}
	if registry != nil {
		if aliases, err := registry.Aliases(); err != nil {
			log.Printf("command: load aliases: %v", err)
		} else {
			r.aliases = aliases
		}
	}
	return r
}

// SetBanPredicate installs the ban check run before any command processing.
func (r *CommandRouter) SetBanPredicate(fn func(charID uint32) bool) {
	if fn != nil {
		r.banned = fn
	}
}

// Register adds a command handler. Registration is fail-soft: a bad access
// label or parameter list logs an error and skips this handler so one
// misconfigured module cannot block startup.
func (r *CommandRouter) Register(command, subCommand string, channel Channel, accessLevel string, params []Param, help string, handler CommandHandler) {
	command = strings.ToLower(command)
	if _, ok := r.access.Get(accessLevel); !ok {
		log.Printf("command: %s/%s on %s: unknown access level %q, skipping", command, subCommand, channel, accessLevel)
		return
	}
	re, err := compileParams(params)
	if err != nil {
		log.Printf("command: %s/%s on %s: bad params: %v, skipping", command, subCommand, channel, err)
		return
	}

	cfg := r.findConfig(command, subCommand, channel)
	if cfg == nil {
		cfg = &commandConfig{
			command:     command,
			subCommand:  subCommand,
			channel:     channel,
			accessLevel: accessLevel,
			enabled:     true,
		}
		if r.registry != nil {
			stored, err := r.registry.VerifyCommand(command, subCommand, string(channel), accessLevel)
			if err != nil {
				log.Printf("command: persist %s/%s on %s: %v", command, subCommand, channel, err)
			} else {
				cfg.accessLevel = stored.AccessLevel
				cfg.enabled = stored.Enabled
			}
		}
		key := commandKey(command, channel)
		r.configs[key] = append(r.configs[key], cfg)
	}
	cfg.handlers = append(cfg.handlers, &commandEntry{re: re, handler: handler, help: help})
}

func (r *CommandRouter) findConfig(command, subCommand string, channel Channel) *commandConfig {
	for _, cfg := range r.configs[commandKey(command, channel)] {
		if cfg.subCommand == subCommand {
			return cfg
		}
	}
	return nil
}

func commandKey(command string, channel Channel) string {
	return command + "|" + string(channel)
}

// SetEnabled toggles a command config at runtime and persists the change.
func (r *CommandRouter) SetEnabled(command, subCommand string, channel Channel, enabled bool) bool {
	cfg := r.findConfig(strings.ToLower(command), subCommand, channel)
	if cfg == nil {
		return false
	}
	cfg.enabled = enabled
	if r.registry != nil {
		if err := r.registry.SetCommandEnabled(cfg.command, cfg.subCommand, string(cfg.channel), enabled); err != nil {
			log.Printf("command: persist enabled flag: %v", err)
		}
	}
	return true
}

// AddAlias installs a command redirect.
func (r *CommandRouter) AddAlias(alias, command string) {
	r.aliases[strings.ToLower(alias)] = strings.ToLower(command)
	if r.registry != nil {
		if err := r.registry.SetAlias(strings.ToLower(alias), strings.ToLower(command)); err != nil {
			log.Printf("command: persist alias: %v", err)
		}
	}
}

// Process handles one inbound chat line. The command symbol is mandatory on
// org and private channels and optional on direct messages; lines without
// it on symbol-mandatory channels are ignored as ordinary chat.
func (r *CommandRouter) Process(ctx *CommandContext, line string) {
	if r.banned(ctx.CharID) {
		return
	}
	line = strings.TrimSpace(line)
	switch ctx.Channel {
	case ChannelOrg, ChannelPrivateChannel:
		if !strings.HasPrefix(line, r.symbol) {
			return
		}
		line = strings.TrimPrefix(line, r.symbol)
	default:
		line = strings.TrimPrefix(line, r.symbol)
	}
	if line == "" {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("command: panic processing %q from %d: %v", line, ctx.CharID, rec)
			ctx.Reply(replyInternalError)
		}
	}()

	command, args := splitCommand(line)
	if target, ok := r.aliases[command]; ok {
		command = target
	}

	configs := r.configs[commandKey(command, ctx.Channel)]
	if len(configs) == 0 {
		ctx.Reply(replyUnknownCommand)
		return
	}

	denied := false
	var helps []string
	for _, cfg := range configs {
		if !cfg.enabled {
			continue
		}
		if !r.access.HasAccess(ctx.CharID, cfg.accessLevel) {
			denied = true
			continue
		}
		for _, entry := range cfg.handlers {
			if captured, ok := matchParams(entry.re, args); ok {
				ctx.Args = captured
				entry.handler(ctx)
				return
			}
			if entry.help != "" {
				helps = append(helps, entry.help)
			}
		}
	}

	if denied && len(helps) == 0 {
		ctx.Reply(replyAccessDenied)
		return
	}
	if len(helps) > 0 {
		ctx.Reply(fmt.Sprintf("Syntax: %s", strings.Join(helps, " | ")))
		return
	}
	ctx.Reply(replyInvalidSyntax)
}

// HelpFor lists the help lines of every enabled command the character can
// run on the given channel.
func (r *CommandRouter) HelpFor(charID uint32, channel Channel) []string {
	var out []string
	seen := make(map[string]bool)
	for _, cfgs := range r.configs {
		for _, cfg := range cfgs {
			if cfg.channel != channel || !cfg.enabled {
				continue
			}
			if !r.access.HasAccess(charID, cfg.accessLevel) {
				continue
			}
			for _, entry := range cfg.handlers {
				if entry.help != "" && !seen[entry.help] {
					seen[entry.help] = true
					out = append(out, r.symbol+entry.help)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	command := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return command, ""
	}
	return command, strings.TrimSpace(parts[1])
}
