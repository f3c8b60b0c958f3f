package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pders01/quill/internal/api"
	"github.com/pders01/quill/internal/config"
	"github.com/pders01/quill/internal/debuglog"
	"github.com/pders01/quill/internal/desk"
	"github.com/pders01/quill/internal/storage"
)

// session is a headless desk: the same reducer the interface uses, driven
// synchronously against the configured backend.
type session struct {
	cfg    *config.Config
	client *api.Client
	runner *desk.Runner
	store  *storage.Store
}

// openSession loads config and connects to the backend. The local cache is
// used when it can be opened; a running interface holds its lock, so
// failing to open it is not an error.
func openSession(opts *globalOptions, query func(desk.Query) desk.Query) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	client, err := api.NewFromConfig(cfg.Backend)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, client: client}
	deps := desk.Deps{Backend: client, Timeout: cfg.Backend.Timeout}
	if store, serr := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout); serr == nil {
		store.SetScope(cfg.Backend.URL)
		s.store = store
		deps.Recorder = store
	} else {
		debuglog.Warnf("cache unavailable: %v", serr)
	}

	state := desk.NewState(cfg.Backend.PageSize)
	if query != nil {
		state.Query = query(state.Query)
	}
	s.runner = desk.NewRunner(desk.NewStore(state), deps)
	return s, nil
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
	debuglog.Close()
}

// run dispatches a and turns an error notice raised by it into an error.
func (s *session) run(ctx context.Context, a desk.Action) (desk.State, error) {
	before := s.runner.Store().State().Notice.Seq
	st := s.runner.Run(ctx, a)
	if st.Notice.Seq != before && st.Notice.Kind == desk.NoticeError {
		return st, errors.New(st.Notice.Text)
	}
	return st, nil
}

// mutate runs a backend mutation. The first notice it raises is its outcome;
// an error raised after that comes from the refetch, and the mutation has
// already been applied, so it is only reported to warn.
func (s *session) mutate(ctx context.Context, a desk.Action, warn io.Writer) (desk.State, desk.Notice, error) {
	var notices []desk.Notice
	last := s.runner.Store().State().Notice.Seq
	cancel := s.runner.Store().Subscribe(func(st desk.State) {
		if st.Notice.Seq != last {
			last = st.Notice.Seq
			notices = append(notices, st.Notice)
		}
	})
	st := s.runner.Run(ctx, a)
	cancel()

	if len(notices) == 0 {
		return st, desk.Notice{}, nil
	}
	outcome := notices[0]
	if outcome.Kind == desk.NoticeError {
		return st, outcome, errors.New(outcome.Text)
	}
	for _, n := range notices[1:] {
		if n.Kind == desk.NoticeError {
			fmt.Fprintf(warn, "Warning: %s\n", n.Text)
		}
	}
	return st, outcome, nil
}

// find pages through the collection until id shows up.
func (s *session) find(ctx context.Context, id desk.ItemID) (desk.Item, error) {
	st, err := s.run(ctx, desk.Init{})
	for err == nil {
		if item, ok := st.Page.Find(id); ok {
			return item, nil
		}
		if !st.CanNext() {
			break
		}
		st, err = s.run(ctx, desk.NextPage{})
	}
	if err != nil {
		return desk.Item{}, err
	}
	return desk.Item{}, fmt.Errorf("post %s not found", id)
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		searchText string
		posted     string
		page       int
		output     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter, err := desk.ParsePostedFilter(posted)
			if err != nil {
				return err
			}
			if page < 1 {
				return fmt.Errorf("page must be at least 1, got %d", page)
			}
			format, err := parseFormat(output)
			if err != nil {
				return err
			}

			s, err := openSession(opts, func(q desk.Query) desk.Query {
				return q.WithSearch(strings.TrimSpace(searchText)).
					WithPosted(filter).
					WithOffset((page - 1) * q.Limit)
			})
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.run(cmd.Context(), desk.Init{})
			if err != nil {
				return err
			}
			return writePage(cmd.OutOrStdout(), format, st.Page)
		},
	}

	cmd.Flags().StringVarP(&searchText, "search", "s", "", "Only posts whose topic or content matches")
	cmd.Flags().StringVar(&posted, "posted", "all", "Filter by state: all, posted or unposted")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "Page number")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
	return cmd
}

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "generate <topic...>",
		Short: "Generate a post about a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topic := strings.TrimSpace(strings.Join(args, " "))
			if topic == "" {
				return errors.New("topic must not be empty")
			}

			s, err := openSession(opts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if _, err := s.run(ctx, desk.SetTopic{Text: topic}); err != nil {
				return err
			}
			st, notice, err := s.mutate(ctx, desk.Generate{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), notice.Text)
			if len(st.Page.Items) > 0 {
				latest := st.Page.Items[0]
				fmt.Fprintf(cmd.OutOrStdout(), "\n[%s] %s\n%s\n", latest.ID, latest.Topic, latest.Content)
			}
			return nil
		},
	}
}

func newPostCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post <id>",
		Short: "Publish a post now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			_, notice, err := s.mutate(cmd.Context(), desk.PostNow{ID: desk.ItemID(args[0])}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), notice.Text)
			return nil
		},
	}
}

func newEditCmd(opts *globalOptions) *cobra.Command {
	var topic, content string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the topic or content of an unpublished post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicSet, contentSet := cmd.Flags().Changed("topic"), cmd.Flags().Changed("content")
			if !topicSet && !contentSet {
				return errors.New("nothing to change: pass --topic and/or --content")
			}

			s, err := openSession(opts, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			item, err := s.find(ctx, desk.ItemID(args[0]))
			if err != nil {
				return err
			}
			if item.Posted {
				return fmt.Errorf("post %s is already published", item.ID)
			}

			draftTopic, draftContent := item.Topic, item.Content
			if topicSet {
				draftTopic = topic
			}
			if contentSet {
				draftContent = content
			}

			s.runner.Store().Dispatch(desk.StartEdit{Item: item})
			s.runner.Store().Dispatch(desk.SetDraft{Topic: draftTopic, Content: draftContent})
			_, notice, err := s.mutate(ctx, desk.SaveEdit{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), notice.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "New topic")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	return cmd
}

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer debuglog.Close()

			client, err := api.NewFromConfig(cfg.Backend)
			if err != nil {
				return err
			}

			if err := client.Health(cmd.Context()); err != nil {
				if api.IsStatus(err, http.StatusNotFound) {
					return fmt.Errorf("backend %s has no health endpoint: %w", client.BaseURL(), err)
				}
				return fmt.Errorf("backend %s: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backend %s is healthy\n", client.BaseURL())
			return nil
		},
	}
}
