// Package main issues a development identity token and writes it to a file
// that the client's "signin" command can read.
package main

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atinyakov/observer/internal/idtoken"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, issues the token and writes it to -out.
func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	secret := flags.String("secret", os.Getenv("IDENTITY_SECRET"), "signing secret shared with the server")
	subject := flags.String("sub", "dev-user", "provider subject")
	email := flags.String("email", "", "account email")
	ttl := flags.Duration("ttl", time.Hour, "token lifetime, 0 for no expiry")
	out := flags.String("out", "identity.token", "output file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		return errors.New("a signing secret is required (-secret or IDENTITY_SECRET)")
	}

	var expiresAt time.Time
	if *ttl > 0 {
		expiresAt = time.Now().Add(*ttl)
	}
	token, err := idtoken.Issue(*secret, *subject, *email, expiresAt)
	if err != nil {
		return err
	}
	if err := idtoken.WriteFile(*out, token); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Identity token for %q written to %s (expires: %s)\n",
		*subject, *out, cmp.Or(formatExpiry(expiresAt), "never"))
	return nil
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
