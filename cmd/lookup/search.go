package main

import (
	"encoding/json"
	"fmt"
	"io"

	"lookup-gateway/lookup/search"
	"lookup-gateway/lookup/stream"
	"lookup-gateway/lookup/upstream"

	"github.com/spf13/cobra"
)

func newSearchCmd(a *app) *cobra.Command {
	var asJSON, all, noCache, quiet bool
	cmd := &cobra.Command{
		Use:   "search <username>",
		Short: "Check a username across platforms and the web",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cl := a.cfg.Client
			ep := upstream.Endpoint{BaseURL: cl.GatewayURL, Timeout: cl.Timeout}
			clientOpts := []upstream.Option{upstream.WithLogger(a.log)}

			opts := []search.Option{
				search.WithLogger(a.log),
				search.WithFlushInterval(cl.FlushInterval),
				search.WithReplayDelay(cl.ReplayDelay),
				search.WithProductionErrors(a.cfg.Production()),
				search.WithStreamOptions(stream.WithLogger(a.log)),
			}
			if !noCache {
				c, closeCache, err := a.openCache(ctx)
				if err != nil {
					return err
				}
				defer closeCache()
				opts = append(opts, search.WithCache(c))
			}

			o := search.New(
				upstream.NewPlatformClient(ep, upstream.DefaultPlatformsPath, clientOpts...),
				upstream.NewWebSearchClient(ep, upstream.DefaultWebSearchPath, clientOpts...),
				opts...,
			)
			defer o.Close()

			updates, unsubscribe := o.Subscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for s := range updates {
					if !quiet && s.IsSearching && s.Progress.Total > 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "\r[%3.0f%%] %d/%d platforms", s.Progress.Percentage, s.Progress.Completed, s.Progress.Total)
					}
				}
			}()

			o.Search(ctx, args[0])
			unsubscribe()
			<-done

			final := o.Snapshot()
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(final)
			}
			printState(cmd.OutOrStdout(), final, all)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the final state as JSON")
	cmd.Flags().BoolVar(&all, "all", false, "also list platforms where the profile was not found")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the local result cache")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func printState(w io.Writer, s search.State, all bool) {
	if s.PlatformErr != "" {
		fmt.Fprintln(w, "platforms error:", s.PlatformErr)
	}
	source := ""
	if s.FromCache {
		source = " (cached)"
	}
	fmt.Fprintf(w, "%s: found on %d of %d platforms%s\n", s.Query, s.Found(), len(s.Results), source)
	for _, r := range s.Results {
		if !r.Found() && !all {
			continue
		}
		mark := "+"
		if !r.Found() {
			mark = "-"
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", mark, r.Platform, r.URL)
	}

	if s.WebErr != "" {
		fmt.Fprintln(w, "web search error:", s.WebErr)
		return
	}
	if s.Web.Empty() {
		return
	}
	fmt.Fprintln(w, "web:")
	if s.Web.Answer != "" {
		fmt.Fprintln(w, "  "+s.Web.Answer)
	}
	for _, item := range s.Web.Items {
		fmt.Fprintf(w, "  * %s <%s>\n", item.Title, item.URL)
	}
}
