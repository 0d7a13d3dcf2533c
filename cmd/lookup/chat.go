package main

import (
	"fmt"
	"strings"

	"lookup-gateway/lookup/stream"
	"lookup-gateway/lookup/upstream"

	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the assistant through the gateway and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := a.cfg.Client
			chat := upstream.NewChatClient(
				upstream.Endpoint{BaseURL: cl.GatewayURL, Timeout: cl.Timeout},
				upstream.ChatConfig{
					Path:        "/api/chat",
					KeyOptional: true,
					Stream:      []stream.Option{stream.WithLogger(a.log)},
				},
				upstream.WithLogger(a.log),
			)

			var msgs []upstream.Message
			if system != "" {
				msgs = append(msgs, upstream.Message{Role: "system", Content: system})
			}
			msgs = append(msgs, upstream.Message{Role: "user", Content: strings.Join(args, " ")})

			sc, err := chat.Deltas(cmd.Context(), msgs)
			if err != nil {
				return err
			}
			defer sc.Close()

			out := cmd.OutOrStdout()
			for sc.Next() {
				fmt.Fprint(out, sc.Text())
			}
			fmt.Fprintln(out)
			return sc.Err()
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "optional system prompt")
	return cmd
}
