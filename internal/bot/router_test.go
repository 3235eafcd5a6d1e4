package bot

import (
	"context"
	"reflect"
	"testing"
	"time"

	"walletwatch/internal/transport"
	logx "walletwatch/pkg/logx"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in    string
		route string
		args  []string
	}{
		{"/add addr MyWallet", "add", []string{"addr", "MyWallet"}},
		{"/ADD addr", "add", []string{"addr"}},
		{"/my@WalletWatchBot", "my", nil},
		{"  /check  ", "check", nil},
		{"/remove Cold  Storage", "remove", []string{"Cold", "Storage"}},
		{"hello", "", nil},
		{"/", "", nil},
		{"", "", nil},
	}
	for _, c := range cases {
		route, args := parseCommand(c.in)
		if route != c.route {
			t.Fatalf("parseCommand(%q) route = %q, want %q", c.in, route, c.route)
		}
		if len(args) != len(c.args) || (len(args) > 0 && !reflect.DeepEqual(args, c.args)) {
			t.Fatalf("parseCommand(%q) args = %v, want %v", c.in, args, c.args)
		}
	}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter(nil, logx.Nop())

	got := make(chan *Request, 1)
	r.Register(Command{
		Route:   "ping",
		Aliases: []string{"p"},
		Handle: func(ctx context.Context, req *Request) error {
			got <- req
			return nil
		},
	})

	updates := make(chan transport.Update, 4)
	updates <- transport.Update{} // nil message, ignored
	updates <- transport.Update{Message: &transport.Message{Text: "not a command"}}
	updates <- transport.Update{Message: &transport.Message{Text: "/unknown"}}
	updates <- transport.Update{Message: &transport.Message{
		ChatID: 10,
		FromID: 20,
		Text:   "/p one two",
	}}
	close(updates)

	r.Run(context.Background(), updates)

	select {
	case req := <-got:
		if req.Chat.ChatID != 10 || req.TenantID != 20 {
			t.Fatalf("request routing wrong: %+v", req)
		}
		if len(req.Args) != 2 || req.Args[0] != "one" {
			t.Fatalf("args wrong: %v", req.Args)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestRouterCommandsSorted(t *testing.T) {
	r := NewRouter(nil, logx.Nop())
	r.Register(
		Command{Route: "zeta"},
		Command{Route: "alpha"},
	)
	cmds := r.Commands()
	if len(cmds) != 2 || cmds[0].Route != "alpha" || cmds[1].Route != "zeta" {
		t.Fatalf("commands not sorted: %+v", cmds)
	}
}
