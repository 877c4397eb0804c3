package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"movie-club-service/internal/app"
	"movie-club-service/internal/config"
	"movie-club-service/internal/domain"

	"github.com/spf13/cobra"
)

const terminalSession = "terminal"

// NewPredictCmd runs one prediction session over stdin/stdout.
func NewPredictCmd(configPath *string) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict a member's score for this week's movie interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			b, err := openBackends(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			service := app.NewPredictionService(b.sessionStore(cfg), b.catalogRepository(cfg), peerOptions(cfg))
			return runPredict(cmd.Context(), service, user, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "member to predict for (prompted when empty)")
	return cmd
}

// runPredict drives the session loop. Besides yes/no it understands
// reset, peers, history, user and quit.
func runPredict(ctx context.Context, service *app.PredictionService, user string, in io.Reader, out io.Writer) error {
	service.Open(ctx, terminalSession)
	defer service.Close(ctx, terminalSession)
	scanner := bufio.NewScanner(in)

	users, err := service.Users(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "members: %s\n", strings.Join(users, ", "))

	if user == "" {
		fmt.Fprint(out, "user> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		user = strings.TrimSpace(scanner.Text())
	}
	view, err := service.SelectUser(ctx, terminalSession, user)
	if err != nil {
		return err
	}

	for {
		printView(out, view)
		if view.Unavailable {
			return nil
		}
		if view.Next == nil {
			fmt.Fprint(out, "> ")
		} else {
			fmt.Fprintf(out, "%s [y/n]> ", view.Next.Prompt)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		switch {
		case input == "quit" || input == "q":
			return nil
		case input == "reset":
			view, err = service.Reset(ctx, terminalSession)
		case input == "peers":
			err = printPeers(ctx, service, out, view.Username)
		case input == "history":
			err = printHistory(ctx, service, out, view.Username)
		case strings.HasPrefix(input, "user "):
			view, err = service.SelectUser(ctx, terminalSession, strings.TrimSpace(input[len("user "):]))
		case view.Next != nil:
			var answer domain.Answer
			if answer, err = domain.ParseAnswer(input); err == nil {
				var next domain.PredictionView
				if next, err = service.Answer(ctx, terminalSession, view.Next.ID, answer); err == nil {
					view = next
				}
			}
		default:
			err = errors.New("prediction complete; try reset, user <name> or quit")
		}
		if err != nil {
			if errors.Is(err, domain.ErrCatalogUnavailable) {
				return err
			}
			fmt.Fprintf(out, "error: %v\n", err)
			if refreshed, viewErr := service.View(ctx, terminalSession); viewErr == nil {
				view = refreshed
			}
		}
	}
}

func printView(out io.Writer, view domain.PredictionView) {
	if view.Unavailable {
		fmt.Fprintf(out, "%s has no rated movies, unable to predict\n", view.Username)
		return
	}
	if view.Summary != "" {
		fmt.Fprintf(out, "prediction for %s: %s\n", view.Username, view.Summary)
	}
}

func printPeers(ctx context.Context, service *app.PredictionService, out io.Writer, username string) error {
	peers, err := service.Peers(ctx, username)
	if err != nil {
		return err
	}
	if len(peers) == 0 {
		fmt.Fprintln(out, "no peers share enough movies")
		return nil
	}
	for _, p := range peers {
		fmt.Fprintf(out, "%s  r=%.2f  shared=%d\n", p.Username, p.Correlation, p.Shared)
	}
	return nil
}

func printHistory(ctx context.Context, service *app.PredictionService, out io.Writer, username string) error {
	movies, err := service.History(ctx, username)
	if err != nil {
		return err
	}
	for _, m := range movies {
		fmt.Fprintf(out, "%-10s %4.1f  %s (%d)\n", m.WatchedDate, m.Score, m.Title, m.Year)
	}
	return nil
}
