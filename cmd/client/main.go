package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/observer/internal/client/account"
	"github.com/atinyakov/observer/internal/client/api"
	"github.com/atinyakov/observer/internal/client/auth"
	"github.com/atinyakov/observer/internal/client/catalog"
	"github.com/atinyakov/observer/internal/client/credential"
	"github.com/atinyakov/observer/internal/client/likes"
	"github.com/atinyakov/observer/internal/client/prompt"
	"github.com/atinyakov/observer/internal/client/session"
	"github.com/atinyakov/observer/internal/client/transport"
	"github.com/atinyakov/observer/internal/config"
	"github.com/atinyakov/observer/internal/logger"
)

var (
	version   string
	buildDate string
)

const helpText = `Available commands:
  login                 sign in with username and password
  signin                sign in with an identity token
  logout                end the session
  refresh               exchange the session for a new one
  whoami                show the signed-in user
  search <query>        search products
  more                  load the next page of results
  product <id>          show a product and its price history
  likes                 list liked products
  likes more            load more liked products
  like <id>             toggle the like on a product
  delete-account        delete the signed-in account
  version               show build version and date
  exit                  quit`

// shell holds the client-side components behind the REPL.
type shell struct {
	session *session.Controller
	catalog *catalog.Client
	results *catalog.Results
	likes   *likes.Manager
	prompt  *prompt.Prompter
	out     io.Writer

	// mu is held while a command runs. handled is the session state left
	// by the last command; watch stays quiet about it.
	mu      sync.Mutex
	handled session.State
}

func main() {
	options, err := config.ParseClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New()
	if err := log.InitConsole(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Log.Sync() }()

	creds, closeStore, err := openStore(options)
	if err != nil {
		log.Log.Fatal("cannot open credential store", zap.Error(err))
	}
	defer closeStore()

	tr := transport.NewHTTP(&http.Client{Timeout: options.Timeout.Duration}, log.Log)
	apiClient := api.New(options.BaseURL, creds, tr,
		api.WithCacheSize(options.CacheSize),
		api.WithLogger(log.Log),
	)

	controller := session.New(auth.New(apiClient), creds, account.New(apiClient),
		session.WithLogger(log.Log),
		session.WithSignOutHook(apiClient.Purge),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := controller.Start(ctx); err != nil {
		fmt.Println("Could not restore session:", api.UserMessage(err))
	}
	if options.RefreshInterval.Duration > 0 {
		controller.StartAutoRefresh(ctx, options.RefreshInterval.Duration)
	}

	catalogClient := catalog.New(apiClient)
	sh := &shell{
		session: controller,
		catalog: catalogClient,
		results: catalog.NewResults(catalogClient, catalog.DefaultPageSize),
		likes:   likes.NewManager(likes.New(apiClient), likes.DefaultLimit),
		prompt:  prompt.New(os.Stdin, os.Stdout),
		out:     os.Stdout,
	}

	states, cancel := controller.Subscribe()
	defer cancel()
	go sh.watch(states)

	sh.repl(ctx)
}

// openStore opens the configured credential store. The returned func
// releases it.
func openStore(options *config.ClientOptions) (credential.Store, func(), error) {
	if options.Store == "bolt" {
		if err := os.MkdirAll(filepath.Dir(options.SessionFile), 0o700); err != nil {
			return nil, nil, err
		}
		store, err := credential.OpenBoltStore(options.SessionFile)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return credential.NewFileStore(options.SessionFile), func() {}, nil
}

// watch reports sign-outs with a message that no command caused, e.g. a
// failed background refresh. States a later command replaced are skipped.
func (s *shell) watch(states <-chan session.State) {
	for st := range states {
		s.mu.Lock()
		if st.Status == session.SignedOut && st.Err != "" && st != s.handled && st == s.session.State() {
			fmt.Fprintf(s.out, "\n%s\n", st.Err)
		}
		s.mu.Unlock()
	}
}

// exec runs one command and prints its error.
func (s *shell) exec(ctx context.Context, args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.run(ctx, args); err != nil {
		fmt.Fprintln(s.out, "Error:", api.UserMessage(err))
	}
	s.handled = s.session.State()
}

// repl runs the interactive loop until exit, EOF or ctx ends.
func (s *shell) repl(ctx context.Context) {
	for ctx.Err() == nil {
		line, ok := s.prompt.Line("observer> ")
		if !ok {
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.out, "Bye")
			return
		}
		s.exec(ctx, args)
	}
}

func (s *shell) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "version":
		fmt.Fprintf(s.out, "Observer Client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
	case "login":
		username, password, ok := s.prompt.Credentials()
		if !ok {
			return nil
		}
		if err := s.session.Login(ctx, username, password); err != nil {
			return err
		}
		s.printUser()
	case "signin":
		provider, ok := s.prompt.IdentityToken()
		if !ok {
			return nil
		}
		isNew, err := s.session.SignInWith(ctx, provider)
		if err != nil {
			return err
		}
		s.printUser()
		if isNew {
			fmt.Fprintln(s.out, "Welcome! Your account has been created.")
		}
	case "logout":
		if err := s.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Logged out")
	case "refresh":
		if err := s.session.Refresh(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Session refreshed")
	case "whoami":
		s.printUser()
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: search <query>")
			return nil
		}
		err := s.results.Search(ctx, strings.Join(args[1:], " "))
		if s.checkSession(err) {
			return nil
		}
		if err != nil {
			return err
		}
		s.printResults()
	case "more":
		err := s.results.LoadMore(ctx)
		if errors.Is(err, catalog.ErrNoMorePages) {
			fmt.Fprintln(s.out, "No more results")
			return nil
		}
		if s.checkSession(err) {
			return nil
		}
		if err != nil {
			return err
		}
		s.printResults()
	case "product":
		id, ok := s.productID(args)
		if !ok {
			return nil
		}
		p, err := s.catalog.Product(ctx, id)
		if s.checkSession(err) {
			return nil
		}
		if err != nil {
			return err
		}
		s.printProduct(p)
	case "likes":
		return s.runLikes(ctx, args)
	case "like":
		id, ok := s.productID(args)
		if !ok {
			return nil
		}
		return s.toggleLike(ctx, id)
	case "delete-account":
		if !s.prompt.Confirm("Delete your account permanently?") {
			return nil
		}
		if err := s.session.DeleteAccount(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Account deleted")
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func (s *shell) runLikes(ctx context.Context, args []string) error {
	var err error
	if len(args) > 1 && args[1] == "more" {
		var more bool
		more, err = s.likes.More(ctx)
		if err == nil && !more {
			fmt.Fprintln(s.out, "All liked products loaded")
		}
	} else {
		err = s.likes.Reload(ctx)
	}
	if s.checkSession(err) {
		return nil
	}
	if err != nil {
		return err
	}
	products := s.likes.Products()
	if len(products) == 0 {
		fmt.Fprintln(s.out, "No liked products")
	}
	for _, p := range products {
		s.printLine(p)
	}
	return nil
}

func (s *shell) toggleLike(ctx context.Context, id int64) error {
	st := s.session.State()
	if st.Status != session.SignedIn || st.User == nil {
		return session.ErrNotSignedIn
	}
	p, err := s.findProduct(ctx, id)
	if s.checkSession(err) {
		return nil
	}
	if err != nil {
		return err
	}
	liked, err := s.likes.Toggle(ctx, st.User.ID, p)
	if s.checkSession(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if liked {
		fmt.Fprintf(s.out, "Liked %s\n", p.Name)
	} else {
		fmt.Fprintf(s.out, "Unliked %s\n", p.Name)
	}
	return nil
}

// findProduct looks in the loaded lists before asking the backend.
func (s *shell) findProduct(ctx context.Context, id int64) (catalog.Product, error) {
	for _, p := range s.results.State().Products {
		if p.ID == id {
			return p, nil
		}
	}
	for _, p := range s.likes.Products() {
		if p.ID == id {
			return p, nil
		}
	}
	return s.catalog.Product(ctx, id)
}

// checkSession signs out on a rejected session and reports whether it did.
func (s *shell) checkSession(err error) bool {
	if err == nil || !s.session.HandleUnauthorized(err) {
		return false
	}
	fmt.Fprintln(s.out, cmp.Or(s.session.State().Err, "Please sign in first."))
	return true
}

func (s *shell) productID(args []string) (int64, bool) {
	if len(args) < 2 {
		fmt.Fprintf(s.out, "Usage: %s <id>\n", args[0])
		return 0, false
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid product id %q\n", args[1])
		return 0, false
	}
	return id, true
}

func (s *shell) printUser() {
	st := s.session.State()
	switch {
	case st.Status != session.SignedIn:
		fmt.Fprintln(s.out, "Not signed in")
	case st.User == nil:
		fmt.Fprintln(s.out, "Signed in (profile unavailable)")
	case st.User.Email != "":
		fmt.Fprintf(s.out, "Signed in as %s <%s>\n", st.User.Username, st.User.Email)
	default:
		fmt.Fprintf(s.out, "Signed in as %s\n", st.User.Username)
	}
}

func (s *shell) printResults() {
	st := s.results.State()
	if len(st.Products) == 0 {
		fmt.Fprintln(s.out, "No products found")
		return
	}
	for _, p := range st.Products {
		s.printLine(p)
	}
	pg := st.Pagination
	fmt.Fprintf(s.out, "page %d/%d, %d products", pg.CurrentPage+1, pg.TotalPages, pg.TotalElements)
	if !pg.Last {
		fmt.Fprint(s.out, " (type 'more' for the next page)")
	}
	fmt.Fprintln(s.out)
}

func (s *shell) printLine(p catalog.Product) {
	mark := " "
	if s.likes.IsLiked(p.ID) {
		mark = "*"
	}
	fmt.Fprintf(s.out, "%s %6d  %-12s %-40s %8d\n", mark, p.ID, p.Brand, p.Name, p.Price)
}

func (s *shell) printProduct(p catalog.Product) {
	fmt.Fprintf(s.out, "%s %s (#%d)\n", p.Brand, p.Name, p.ID)
	fmt.Fprintf(s.out, "  price:    %d (was %d, save %d)\n", p.Price, p.OriginalPrice, p.PriceDifference())
	if rate, ok := p.DiscountRateValue(); ok {
		fmt.Fprintf(s.out, "  discount: %.0f%%\n", rate)
	}
	if p.Category != "" {
		fmt.Fprintf(s.out, "  category: %s\n", p.Category)
	}
	if p.URL != "" {
		fmt.Fprintf(s.out, "  url:      %s\n", p.URL)
	}
	for _, h := range p.PriceHistory {
		fmt.Fprintf(s.out, "  %s  %.0f\n", h.Date.Format("2006-01-02"), h.Price)
	}
}
