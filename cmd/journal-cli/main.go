package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"littlejoys/internal/authclient"
	"littlejoys/internal/config"
	"littlejoys/internal/credentials"
	"littlejoys/internal/gateway"
	"littlejoys/internal/session"
	"littlejoys/internal/storage"
)

// stderrNotifier prints gateway failure messages for the user.
type stderrNotifier struct{}

func (stderrNotifier) Notify(message string) {
	fmt.Fprintln(os.Stderr, message)
}

// cliNavigator records where the gateway would send the UI. The CLI has no
// screens, so a teardown redirect just means the stored session is gone.
type cliNavigator struct {
	path string
}

func (n *cliNavigator) Navigate(path string) { n.path = path }
func (n *cliNavigator) Current() string      { return n.path }

// app holds the wired client stack shared by all commands.
type app struct {
	auth    *authclient.Client
	gw      *gateway.Gateway
	session *session.Store
	creds   *credentials.Manager
}

func newApp() (*app, error) {
	cfg := config.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot resolve home directory: %w", err)
	}
	statePath := filepath.Join(home, ".littlejoys", "state.json")

	store, err := storage.NewFileStore(statePath)
	if err != nil {
		return nil, fmt.Errorf("cannot open state file: %w", err)
	}

	creds := credentials.NewManager(store)
	sess := session.NewStore(store)

	nav := &cliNavigator{path: "/"}
	gw := gateway.New(cfg.APIBaseURL, creds, sess, stderrNotifier{}, nav)
	auth := authclient.New(gw, creds, sess)

	return &app{auth: auth, gw: gw, session: sess, creds: creds}, nil
}

// refreshIfNeeded renews a near-expiry access token before a request goes
// out. Invocations with no stored session are left alone so public reads
// stay anonymous instead of tearing down state that was never there.
func (a *app) refreshIfNeeded(ctx context.Context) {
	if a.creds.RefreshToken() != "" {
		a.gw.EnsureValidToken(ctx)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "journal-cli",
		Short: "Command-line client for the Little Joys journal",
		Long: `journal-cli talks to a Little Joys server and keeps your session in
~/.littlejoys/state.json, so you stay signed in between invocations.
Access tokens are refreshed automatically when they near expiry.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		registerCmd(),
		loginCmd(),
		logoutCmd(),
		whoamiCmd(),
		feedCmd(),
		postCmd(),
		statsCmd(),
		refreshCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func registerCmd() *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "register <email> <password>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			user, err := a.auth.SignUp(ctx, args[0], args[1], nickname)
			if err != nil {
				return err
			}

			fmt.Printf("Registered as %s (%s)\n", nicknameOf(user), user.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&nickname, "nickname", "n", "", "Display name (defaults to the email's local part on the server)")

	return cmd
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email> <password>",
		Short: "Sign in and persist the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			user, err := a.auth.SignIn(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("Signed in as %s (%s)\n", nicknameOf(user), user.Email)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			a.auth.SignOut(ctx)
			fmt.Println("Signed out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			a.auth.InitializeAuth(ctx)

			state := a.session.Snapshot()
			if !state.IsAuthenticated {
				fmt.Println("Not signed in")
				return nil
			}

			fmt.Printf("%s (%s)\n", nicknameOf(state.User), state.User.Email)
			return nil
		},
	}
}

// feedPost mirrors the post fields the feed command prints.
type feedPost struct {
	ID            string    `json:"id"`
	Nickname      string    `json:"nickname"`
	Content       string    `json:"content"`
	LikesCount    int       `json:"likes_count"`
	CommentsCount int       `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type feedPage struct {
	Posts []feedPost `json:"posts"`
}

func feedCmd() *cobra.Command {
	var page, limit int
	var sortType string

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "List recent posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			a.refreshIfNeeded(ctx)

			path := fmt.Sprintf("/api/v1/posts?page=%d&limit=%d&sort_type=%s", page, limit, sortType)
			env, err := a.gw.Get(ctx, path)
			if err != nil {
				return err
			}

			var result feedPage
			if err := json.Unmarshal(env.Data, &result); err != nil {
				return fmt.Errorf("unexpected response shape: %w", err)
			}

			if len(result.Posts) == 0 {
				fmt.Println("No posts yet")
				return nil
			}

			for _, p := range result.Posts {
				fmt.Printf("%s  %s\n  %s\n  %d likes, %d comments\n\n",
					p.CreatedAt.Local().Format("2006-01-02 15:04"),
					p.Nickname,
					p.Content,
					p.LikesCount,
					p.CommentsCount)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&limit, "limit", 10, "Posts per page")
	cmd.Flags().StringVar(&sortType, "sort", "latest", "Sort order: latest or hottest")

	return cmd
}

func postCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <content>",
		Short: "Publish a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			a.refreshIfNeeded(ctx)

			env, err := a.gw.Post(ctx, "/api/v1/posts", map[string]string{"content": args[0]})
			if err != nil {
				return err
			}

			var created feedPost
			if err := json.Unmarshal(env.Data, &created); err != nil {
				return fmt.Errorf("unexpected response shape: %w", err)
			}

			fmt.Printf("Published post %s\n", created.ID)
			return nil
		},
	}
}

type userStats struct {
	PostCount        int `json:"post_count"`
	LikesReceived    int `json:"likes_received"`
	CommentsReceived int `json:"comments_received"`
	RewardsReceived  int `json:"rewards_received"`
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your activity counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			a.refreshIfNeeded(ctx)

			env, err := a.gw.Get(ctx, "/api/v1/users/stats")
			if err != nil {
				return err
			}

			var stats userStats
			if err := json.Unmarshal(env.Data, &stats); err != nil {
				return fmt.Errorf("unexpected response shape: %w", err)
			}

			fmt.Printf("Posts:             %d\n", stats.PostCount)
			fmt.Printf("Likes received:    %d\n", stats.LikesReceived)
			fmt.Printf("Comments received: %d\n", stats.CommentsReceived)
			fmt.Printf("Rewards received:  %d\n", stats.RewardsReceived)
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a token refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext()
			defer cancel()

			if !a.auth.RefreshSession(ctx) {
				return fmt.Errorf("refresh failed; sign in again")
			}

			fmt.Println("Session refreshed")
			return nil
		},
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func nicknameOf(user *session.User) string {
	if user == nil {
		return "unknown"
	}
	if nickname, ok := user.Metadata["nickname"]; ok && nickname != "" {
		return nickname
	}
	return user.Email
}
