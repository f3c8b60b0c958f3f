package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/search"
	"github.com/pders01/quill/internal/storage"
	"github.com/pders01/quill/internal/topics"
	"github.com/pders01/quill/internal/tui"
)

type topicsOptions struct {
	allowPrivate bool
	limit        int
	refresh      bool
}

// openTopics wires a topics manager to the local store and, when one is
// configured, the search index so new headlines become suggestions.
func openTopics(opts *globalOptions, topts *topicsOptions) (*config.Config, *topics.Manager, func(), error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		debuglog.Close()
		return nil, nil, nil, err
	}
	suggester, closeSuggester := openSuggester(store, cfg)

	manager := topics.NewManager(store, cfg)
	manager.SetPermissiveValidation(topts.allowPrivate)
	if l, ok := suggester.(search.HeadlineListener); ok {
		manager.AddListener(l)
	}

	cleanup := func() {
		closeSuggester()
		store.Close()
		debuglog.Close()
	}
	return cfg, manager, cleanup, nil
}

func newTopicsCmd(opts *globalOptions) *cobra.Command {
	topts := &topicsOptions{}

	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Show recent headlines from topic sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, manager, cleanup, err := openTopics(opts, topts)
			if err != nil {
				return err
			}
			defer cleanup()

			if topts.refresh {
				if err := manager.Sync(cmd.Context(), cfg.Topics.Sources); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
				}
			}

			headlines, err := manager.Headlines(topts.limit)
			if err != nil {
				return err
			}
			if len(headlines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No headlines yet. Add a source with 'quill topics add <url>'.")
				return nil
			}

			now := time.Now()
			rows := make([][]string, 0, len(headlines))
			for _, h := range headlines {
				published := "-"
				if !h.Published.IsZero() {
					published = humanize.RelTime(h.Published, now, "ago", "from now")
				}
				rows = append(rows, []string{sourceHost(h.SourceURL), clip(h.Title, 60), published})
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(tui.MutedColor)).
				Headers("SOURCE", "HEADLINE", "PUBLISHED").
				Rows(rows...)
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&topts.allowPrivate, "allow-private", false, "Allow sources on private or loopback addresses")
	cmd.Flags().IntVarP(&topts.limit, "limit", "n", 20, "Number of headlines to show")
	cmd.Flags().BoolVar(&topts.refresh, "refresh", true, "Fetch configured sources before listing")

	cmd.AddCommand(newTopicsAddCmd(opts, topts))
	cmd.AddCommand(newTopicsRemoveCmd(opts, topts))
	return cmd
}

func newTopicsAddCmd(opts *globalOptions, topts *topicsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Add a feed, subreddit or GitHub repository as a topic source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, cleanup, err := openTopics(opts, topts)
			if err != nil {
				return err
			}
			defer cleanup()

			src, err := manager.AddSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", src.Title, src.URL)
			return nil
		},
	}
}

func newTopicsRemoveCmd(opts *globalOptions, topts *topicsOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a topic source and its headlines",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, manager, cleanup, err := openTopics(opts, topts)
			if err != nil {
				return err
			}
			defer cleanup()

			src, err := manager.RemoveSource(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s (%s)\n", src.Title, src.URL)
			return nil
		},
	}
}

func sourceHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return clip(raw, 30)
	}
	return u.Host
}
