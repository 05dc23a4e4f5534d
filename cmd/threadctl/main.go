// threadctl reads and edits comment threads through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"inkwell/internal/api"
	"inkwell/internal/client"
	"inkwell/internal/thread"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	baseURL string
	userID  string
	timeout time.Duration

	rootCmd = &cobra.Command{
		Use:           "threadctl",
		Short:         "Browse and manage comment threads of an inkwell server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	showCmd = &cobra.Command{
		Use:   "show <postId>",
		Short: "Print a post's comment thread",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}
	replyCmd = &cobra.Command{
		Use:   "reply <postId> <body>",
		Short: "Post a comment, or a reply with --parent",
		Args:  cobra.ExactArgs(2),
		RunE:  runReply,
	}
	deleteCmd = &cobra.Command{
		Use:   "delete <commentId>",
		Short: "Delete a comment and all of its replies",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	likeCmd = &cobra.Command{
		Use:   "like <postId>",
		Short: "Like a post, or remove the like with --off",
		Args:  cobra.ExactArgs(1),
		RunE:  runLike,
	}
	reconcileCmd = &cobra.Command{
		Use:   "reconcile <postId>",
		Short: "Recount a post's counters and repair reply links (admin)",
		Args:  cobra.ExactArgs(1),
		RunE:  runReconcile,
	}

	showPages int
	showAll   bool
	replyTo   string
	notifyID  string
	likeOff   bool
)

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("INKWELL_URL", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", os.Getenv("INKWELL_USER"), "user id sent as X-User-ID")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")

	showCmd.Flags().IntVar(&showPages, "pages", 1, "number of top-level pages to load")
	showCmd.Flags().BoolVar(&showAll, "all", false, "load every reply below the loaded comments")
	replyCmd.Flags().StringVar(&replyTo, "parent", "", "comment id to reply to")
	replyCmd.Flags().StringVar(&notifyID, "notification", "", "notification the reply answers")
	likeCmd.Flags().BoolVar(&likeOff, "off", false, "remove the like")

	rootCmd.AddCommand(showCmd, replyCmd, deleteCmd, likeCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *client.Client {
	c := client.New(baseURL)
	if userID != "" {
		c = c.WithUser(userID)
	}
	return c
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()
	c := newClient()

	post, err := c.Post(ctx, args[0])
	if err != nil {
		return err
	}

	v := thread.New()
	for i := 0; i < showPages; i++ {
		if v, err = c.LoadTopLevel(ctx, v, post.ID); err != nil {
			return err
		}
		if !v.HasMoreTopLevel() {
			break
		}
	}
	if showAll {
		if v, err = c.ExpandAll(ctx, v); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", post.Title)
	return render(cmd.OutOrStdout(), v)
}

func runReply(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	req := api.CreateCommentRequest{Body: args[1]}
	if replyTo != "" {
		req.ParentID = &replyTo
	}
	if notifyID != "" {
		req.NotificationID = &notifyID
	}

	res, err := newClient().CreateComment(ctx, args[0], req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", res.Comment.ID, formatCounters(res.Counters))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	res, err := newClient().DeleteComment(ctx, args[0])
	if client.IsNotFound(err) {
		// 重试删除时评论已不存在，视为成功
		fmt.Fprintf(cmd.OutOrStdout(), "%s already deleted\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d comments (%s)\n", len(res.RemovedIDs), formatCounters(res.Counters))
	return nil
}

func runLike(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	res, err := newClient().Like(ctx, args[0], !likeOff)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "liked=%t likes=%d\n", res.Liked, res.TotalLikes)
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext(cmd)
	defer cancel()

	report, err := newClient().Reconcile(ctx, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !report.Changed {
		fmt.Fprintf(out, "%s is consistent (%s)\n", report.PostID, formatCounters(report.After))
		return nil
	}
	fmt.Fprintf(out, "%s repaired\n  before: %s\n  after:  %s\n", report.PostID, formatCounters(report.Before), formatCounters(report.After))
	fmt.Fprintf(out, "  relinked parents: %d, removed orphans: %d, purged notifications: %d, cleared reply links: %d\n",
		len(report.RelinkedParents), len(report.RemovedOrphans), report.PurgedNotifications, report.ClearedReplyLinks)
	return nil
}
