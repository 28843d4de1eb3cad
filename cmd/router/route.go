package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AltairaLabs/agent-router/internal/coordinator"
	"github.com/AltairaLabs/agent-router/internal/events"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// progressBuffer bounds the queued progress lines of route --progress
const progressBuffer = 64

func newRouteCmd(root *rootOptions) *cobra.Command {
	var (
		sessionID string
		dryRun    bool
		progress  bool
		pairs     []string
	)

	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Route one message and print the result as JSON",
		Long: `Route one message. With --dry-run only the routing decision is printed;
otherwise the selected agents are dispatched over gRPC and the full outcome set
is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(os.Stderr)
			if err != nil {
				return err
			}

			sctx, err := parseContext(pairs)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			in := coordinator.Inbound{
				SessionID: sessionID,
				Message:   strings.Join(args, " "),
				Context:   sctx,
			}

			var out any
			if dryRun {
				out, err = a.router.Decide(cmd.Context(), in)
			} else {
				if progress {
					if in.SessionID == "" {
						in.SessionID = uuid.NewString()
					}
					stop := streamProgress(a.hub, in.SessionID, cmd.ErrOrStderr())
					defer stop()
				}
				out, err = a.router.HandleMessage(cmd.Context(), in)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Conversation session id (default: a new session)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the decision without dispatching agents")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress events to stderr while agents run")
	cmd.Flags().StringArrayVar(&pairs, "context", nil, "Session context entry as key=value (repeatable)")

	return cmd
}

// parseContext turns key=value pairs into a session context. Comma-separated
// values become lists.
func parseContext(pairs []string) (session.Context, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	sctx := make(session.Context, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid context entry %q, want key=value", pair)
		}
		if strings.Contains(value, ",") {
			items := strings.Split(value, ",")
			list := make([]any, 0, len(items))
			for _, item := range items {
				if item = strings.TrimSpace(item); item != "" {
					list = append(list, item)
				}
			}
			sctx[key] = list
			continue
		}
		sctx[key] = value
	}
	return sctx, nil
}

// streamProgress prints every event of sessionID to w as one JSON line until the
// returned stop function is called
func streamProgress(hub *events.Hub, sessionID string, w io.Writer) func() {
	const listenerID = "cli"
	ch := make(chan string, progressBuffer)
	hub.Subscribe(sessionID, listenerID, events.NewChannelSender(ch))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range ch {
			fmt.Fprintln(w, line)
		}
	}()

	return func() {
		hub.Unsubscribe(sessionID, listenerID)
		close(ch)
		<-done
	}
}
