// Command token logs a user in against the configured database and prints
// a bearer token for the API.
//
//	token --username ana           # prompts for the password
//	echo "$PW" | token --username ana
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/sakif/usuarios-api/internal/auth"
	"github.com/sakif/usuarios-api/internal/clock"
	"github.com/sakif/usuarios-api/internal/config"
	"github.com/sakif/usuarios-api/internal/repository/sqlstore"
	"github.com/sakif/usuarios-api/internal/service"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", ".env", "optional .env file")
	username := fs.String("username", "", "username to log in as")
	ttl := fs.Duration("ttl", -1, "token lifetime; 0 for no expiry (default JWT_TTL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return errors.New("--username is required")
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *ttl < 0 {
		*ttl = cfg.JWTTTL
	}

	password, err := promptPassword(stdin, stderr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	clk, err := clock.NewSystem(cfg.AppTimezone)
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordService(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(cfg.JWTSecret, clk)
	if err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN(), clk, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewAuthService(db, tokens, passwords, *ttl, logger)
	token, user, err := svc.Login(ctx, *username, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "token issued for %s (%s)\n", user.Username(), expiry(*ttl))
	fmt.Fprintln(stdout, token)
	return nil
}

// promptPassword reads without echo from a terminal, or a single line from
// piped input.
func promptPassword(stdin *os.File, stderr io.Writer) (string, error) {
	if term.IsTerminal(int(stdin.Fd())) {
		fmt.Fprint(stderr, "Password: ")
		b, err := term.ReadPassword(int(stdin.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func expiry(ttl time.Duration) string {
	if ttl == 0 {
		return "no expiry"
	}
	return "expires in " + ttl.String()
}
