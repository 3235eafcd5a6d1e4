package bot

import (
	"context"
	"sort"
	"strings"
	"sync"

	"walletwatch/internal/transport"
	logx "walletwatch/pkg/logx"
)

// Request carries one inbound command through a handler.
type Request struct {
	Update   transport.Update
	Chat     transport.ChatTarget
	TenantID int64
	Args     []string
}

// Command is one routable bot command.
type Command struct {
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Handle      func(ctx context.Context, req *Request) error
}

// Router consumes the transport's update stream and dispatches slash
// commands to their handlers. Unknown commands and plain text are ignored.
type Router struct {
	adapter transport.Adapter
	log     logx.Logger

	routes   map[string]*Command
	commands []Command

	wg sync.WaitGroup
}

func NewRouter(adapter transport.Adapter, log logx.Logger) *Router {
	return &Router{
		adapter: adapter,
		log:     log,
		routes:  map[string]*Command{},
	}
}

// Register adds commands to the routing table. Later registrations of the
// same route win.
func (r *Router) Register(cmds ...Command) {
	for _, c := range cmds {
		c := c
		r.commands = append(r.commands, c)
		r.routes[strings.ToLower(c.Route)] = &c
		for _, a := range c.Aliases {
			r.routes[strings.ToLower(a)] = &c
		}
	}
}

// Commands returns the registered command list sorted by route, for help
// rendering.
func (r *Router) Commands() []Command {
	out := append([]Command(nil), r.commands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Run dispatches updates until the channel closes or ctx ends. Each update
// is handled on its own goroutine so a slow handler (an on-demand check
// doing network fetches) never stalls the stream.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return
		case up, ok := <-updates:
			if !ok {
				r.wg.Wait()
				return
			}
			if up.Message == nil {
				continue
			}
			route, args := parseCommand(up.Message.Text)
			if route == "" {
				continue
			}
			cmd, ok := r.routes[route]
			if !ok {
				continue
			}
			req := &Request{
				Update:   up,
				Chat:     transport.ChatTarget{ChatID: up.Message.ChatID},
				TenantID: up.Message.FromID,
				Args:     args,
			}
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				if err := cmd.Handle(ctx, req); err != nil {
					r.log.Warn("command failed",
						logx.String("route", cmd.Route),
						logx.Int64("tenant", req.TenantID),
						logx.Err(err))
				}
			}()
		}
	}
}

// parseCommand splits "/add@SomeBot addr name" into ("add", [addr name]).
// Non-command text yields an empty route.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil
	}
	route := fields[0]
	if i := strings.IndexByte(route, '@'); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "", nil
	}
	return strings.ToLower(route), fields[1:]
}
