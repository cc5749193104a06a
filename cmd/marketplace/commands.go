package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/servicehub/marketplace-client/internal/core/domain"
)

var (
	// errUsage reports a command-line mistake already explained on stderr.
	errUsage = errors.New("usage")
	errHelp  = errors.New("help requested")
)

var commands = map[string]command{
	"register":       {summary: "create an account", run: cmdRegister},
	"login":          {summary: "sign in and save the session", run: cmdLogin},
	"logout":         {summary: "sign out and forget the saved session", restore: true, run: cmdLogout},
	"whoami":         {summary: "show the signed-in user", restore: true, run: cmdWhoami},
	"balance":        {summary: "show the current balance", restore: true, run: cmdBalance},
	"add-balance":    {summary: "top the balance up: add-balance AMOUNT", restore: true, run: cmdAddBalance},
	"services":       {summary: "browse the catalog", restore: true, run: cmdServices},
	"service":        {summary: "show one service: service ID", restore: true, run: cmdService},
	"my-services":    {summary: "list your own services (providers)", restore: true, run: cmdMyServices},
	"create-service": {summary: "publish a service (providers)", restore: true, run: cmdCreateService},
	"update-service": {summary: "edit a service: update-service ID (providers)", restore: true, run: cmdUpdateService},
	"delete-service": {summary: "remove a service: delete-service ID (providers)", restore: true, run: cmdDeleteService},
	"service-status": {summary: "activate or deactivate: service-status ID --active=false", restore: true, run: cmdServiceStatus},
	"book":           {summary: "book a service: book SERVICE_ID (clients)", restore: true, run: cmdBook},
	"bookings":       {summary: "list your bookings", restore: true, run: cmdBookings},
	"cancel":         {summary: "cancel a booking: cancel BOOKING_ID", restore: true, run: cmdCancel},
	"transactions":   {summary: "list your transactions", restore: true, run: cmdTransactions},
	"transaction":    {summary: "show one transaction: transaction ID", restore: true, run: cmdTransaction},
	"health":         {summary: "check that the marketplace API answers", run: cmdHealth},
	"serve":          {summary: "run the ops API and keep the session alive", restore: true, run: cmdServe},
}

// flags builds the flag set of one command. Parse errors and --help are
// printed to stderr by pflag itself.
func flags(c *cli, name, args string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.err)
	fs.Usage = func() {
		fmt.Fprintf(c.err, "Usage: marketplace %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *pflag.FlagSet, args []string, positional int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, errHelp
		}
		return nil, errUsage
	}
	if fs.NArg() != positional {
		fs.Usage()
		return nil, errUsage
	}
	return fs.Args(), nil
}

func cmdRegister(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "register", "--name NAME --email EMAIL --nif NIF --type client|provider")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	nif := fs.String("nif", "", "9-digit tax number")
	password := fs.String("password", os.Getenv("MARKETPLACE_PASSWORD"), "password (default $MARKETPLACE_PASSWORD)")
	userType := fs.String("type", string(domain.UserTypeClient), "account type: client or provider")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	user, err := c.app.Auth.Register(ctx, domain.RegisterInput{
		FullName: *name,
		Email:    *email,
		NIF:      *nif,
		Password: *password,
		UserType: domain.UserType(*userType),
	})
	if err != nil {
		return err
	}
	if c.app.Auth.IsAuthenticated() {
		fmt.Fprintf(c.out, "Registered and signed in as %s (%s)\n", user.Email, user.UserType)
		return nil
	}
	fmt.Fprintf(c.out, "Registered %s, sign in with 'marketplace login'\n", user.Email)
	return nil
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "login", "--email EMAIL [--password PASSWORD]")
	email := fs.String("email", "", "account email")
	password := fs.String("password", os.Getenv("MARKETPLACE_PASSWORD"), "password (default $MARKETPLACE_PASSWORD)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	user, err := c.app.Auth.Login(ctx, domain.LoginInput{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Signed in as %s (%s), balance %s\n", user.Email, user.UserType, domain.FormatAmount(user.Balance))
	return nil
}

func cmdLogout(ctx context.Context, c *cli, args []string) error {
	if _, err := parse(flags(c, "logout", ""), args, 0); err != nil {
		return err
	}
	if err := c.app.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Signed out")
	return nil
}

func cmdWhoami(ctx context.Context, c *cli, args []string) error {
	if _, err := parse(flags(c, "whoami", ""), args, 0); err != nil {
		return err
	}
	user, err := c.app.Users.Profile(ctx)
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintf(tw, "ID\t%s\n", user.ID)
	fmt.Fprintf(tw, "Name\t%s\n", user.FullName)
	fmt.Fprintf(tw, "Email\t%s\n", user.Email)
	fmt.Fprintf(tw, "Type\t%s\n", user.UserType)
	fmt.Fprintf(tw, "Balance\t%s\n", domain.FormatAmount(user.Balance))
	if exp := c.app.Auth.Session().ExpiresAt; !exp.IsZero() {
		fmt.Fprintf(tw, "Session expires\t%s\n", exp.Local().Format(time.RFC1123))
	}
	return tw.Flush()
}

func cmdBalance(ctx context.Context, c *cli, args []string) error {
	if _, err := parse(flags(c, "balance", ""), args, 0); err != nil {
		return err
	}
	balance, err := c.app.Users.RefreshBalance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, domain.FormatAmount(balance))
	return nil
}

func cmdAddBalance(ctx context.Context, c *cli, args []string) error {
	pos, err := parse(flags(c, "add-balance", "AMOUNT"), args, 1)
	if err != nil {
		return err
	}
	amount, err := parseAmount(pos[0])
	if err != nil {
		return err
	}
	upd, err := c.app.Users.AddBalance(ctx, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added %s, balance %s\n", domain.FormatAmount(amount), domain.FormatAmount(upd.Balance))
	return nil
}

func cmdServices(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "services", "[--search TEXT] [--min PRICE] [--max PRICE] [--provider ID]")
	search := fs.String("search", "", "match name or description")
	minPrice := fs.Float64("min", 0, "minimum price")
	maxPrice := fs.Float64("max", 0, "maximum price")
	provider := fs.String("provider", "", "only services of this provider")
	limit := fs.Int("limit", domain.DefaultPageSize, "page size")
	pages := fs.Int("pages", 1, "number of pages to load")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	page, err := c.app.Catalog.SetFilters(ctx, domain.ServiceFilters{
		Search:     *search,
		MinPrice:   *minPrice,
		MaxPrice:   *maxPrice,
		ProviderID: *provider,
		Limit:      *limit,
	})
	if err != nil {
		return err
	}
	for i := 1; i < *pages && page.HasMore; i++ {
		if page, err = c.app.Catalog.LoadMore(ctx); err != nil {
			return err
		}
	}

	items := c.app.ServiceStore.Catalog.Items()
	printServices(c, items)
	if c.app.ServiceStore.Catalog.HasMore() {
		fmt.Fprintf(c.out, "\n%d shown, more available (--pages)\n", len(items))
	}
	return nil
}

func cmdService(ctx context.Context, c *cli, args []string) error {
	pos, err := parse(flags(c, "service", "ID"), args, 1)
	if err != nil {
		return err
	}
	svc, err := c.app.Catalog.Get(ctx, pos[0])
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintf(tw, "ID\t%s\n", svc.ID)
	fmt.Fprintf(tw, "Name\t%s\n", svc.Name)
	fmt.Fprintf(tw, "Price\t%s\n", domain.FormatAmount(svc.Price))
	fmt.Fprintf(tw, "Provider\t%s\n", firstNonEmpty(svc.ProviderName, svc.ProviderID))
	fmt.Fprintf(tw, "Active\t%t\n", svc.IsActive)
	fmt.Fprintf(tw, "Description\t%s\n", svc.Description)
	return tw.Flush()
}

func cmdMyServices(ctx context.Context, c *cli, args []string) error {
	if _, err := parse(flags(c, "my-services", ""), args, 0); err != nil {
		return err
	}
	items, err := c.app.Catalog.MyServices(ctx)
	if err != nil {
		return err
	}
	printServices(c, items)
	return nil
}

func serviceFlags(fs *pflag.FlagSet) (name, description *string, price *float64) {
	name = fs.String("name", "", "service name (3-100 characters)")
	description = fs.String("description", "", "description (10-1000 characters)")
	price = fs.Float64("price", 0, "price, greater than 0")
	return name, description, price
}

func cmdCreateService(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "create-service", "--name NAME --description TEXT --price PRICE")
	name, description, price := serviceFlags(fs)
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	svc, err := c.app.Catalog.Create(ctx, domain.ServiceInput{Name: *name, Description: *description, Price: *price})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created service %s (%s)\n", svc.ID, svc.Name)
	return nil
}

func cmdUpdateService(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "update-service", "ID --name NAME --description TEXT --price PRICE")
	name, description, price := serviceFlags(fs)
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	svc, err := c.app.Catalog.Update(ctx, pos[0], domain.ServiceInput{Name: *name, Description: *description, Price: *price})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Updated service %s\n", svc.ID)
	return nil
}

func cmdDeleteService(ctx context.Context, c *cli, args []string) error {
	pos, err := parse(flags(c, "delete-service", "ID"), args, 1)
	if err != nil {
		return err
	}
	if err := c.app.Catalog.Delete(ctx, pos[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Deleted service %s\n", pos[0])
	return nil
}

func cmdServiceStatus(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "service-status", "ID [--active=false]")
	active := fs.Bool("active", true, "whether the service can be booked")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	svc, err := c.app.Catalog.SetStatus(ctx, pos[0], *active)
	if err != nil {
		return err
	}
	state := "inactive"
	if svc.IsActive {
		state = "active"
	}
	fmt.Fprintf(c.out, "Service %s is now %s\n", svc.ID, state)
	return nil
}

func cmdBook(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "book", "SERVICE_ID")
	price := fs.Float64("price", 0, "expected price; looked up when omitted")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	res, err := c.app.Bookings.Create(ctx, domain.CreateBookingInput{ServiceID: pos[0], Price: *price})
	if err != nil {
		return err
	}
	user, _ := c.app.Auth.CurrentUser()
	fmt.Fprintf(c.out, "Booked %s as %s, balance %s\n",
		firstNonEmpty(res.Booking.ServiceName, res.Booking.ServiceID), res.Booking.ID, domain.FormatAmount(user.Balance))
	return nil
}

func cmdBookings(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "bookings", "[--history] [--offset N]")
	history := fs.Bool("history", false, "list past bookings instead of current ones")
	offset := fs.Int("offset", 0, "history offset")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	var items []domain.Booking
	if *history {
		page, err := c.app.Bookings.History(ctx, *offset)
		if err != nil {
			return err
		}
		items = page.Items
	} else {
		mine, err := c.app.Bookings.MyBookings(ctx)
		if err != nil {
			return err
		}
		items = mine
	}

	tw := table(c)
	fmt.Fprintln(tw, "ID\tSERVICE\tAMOUNT\tSTATUS\tCREATED")
	for _, b := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			b.ID, firstNonEmpty(b.ServiceName, b.ServiceID), domain.FormatAmount(b.Amount), b.Status, formatTime(b.CreatedAt))
	}
	return tw.Flush()
}

func cmdCancel(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "cancel", "BOOKING_ID [--reason TEXT]")
	reason := fs.String("reason", "", "cancellation reason")
	pos, err := parse(fs, args, 1)
	if err != nil {
		return err
	}
	// Load current bookings so a booking already cancelled is refused locally.
	if _, err := c.app.Bookings.MyBookings(ctx); err != nil {
		c.log.Debug().Err(err).Msg("bookings not preloaded")
	}
	res, err := c.app.Bookings.Cancel(ctx, domain.CancelBookingInput{BookingID: pos[0], Reason: *reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Cancelled booking %s\n", res.Booking.ID)
	if res.Refund != nil {
		fmt.Fprintf(c.out, "Refunded %s\n", domain.FormatAmount(res.Refund.Amount))
	}
	return nil
}

func cmdTransactions(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "transactions", "[--offset N]")
	offset := fs.Int("offset", 0, "ledger offset")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}
	page, err := c.app.Transactions.History(ctx, *offset)
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintln(tw, "ID\tTYPE\tAMOUNT\tBOOKING\tCREATED")
	for _, tx := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", tx.ID, tx.Type, domain.FormatAmount(tx.Amount), tx.BookingID, formatTime(tx.CreatedAt))
	}
	return tw.Flush()
}

func cmdTransaction(ctx context.Context, c *cli, args []string) error {
	pos, err := parse(flags(c, "transaction", "ID"), args, 1)
	if err != nil {
		return err
	}
	tx, err := c.app.Transactions.Get(ctx, pos[0])
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintf(tw, "ID\t%s\n", tx.ID)
	fmt.Fprintf(tw, "Type\t%s\n", tx.Type)
	fmt.Fprintf(tw, "Amount\t%s\n", domain.FormatAmount(tx.Amount))
	fmt.Fprintf(tw, "Booking\t%s\n", tx.BookingID)
	fmt.Fprintf(tw, "Status\t%s\n", tx.Status)
	fmt.Fprintf(tw, "Created\t%s\n", formatTime(tx.CreatedAt))
	return tw.Flush()
}

func cmdHealth(ctx context.Context, c *cli, args []string) error {
	if _, err := parse(flags(c, "health", ""), args, 0); err != nil {
		return err
	}
	if err := c.app.Health.Check(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s is up\n", c.app.Client.BaseURL())
	return nil
}

func cmdServe(ctx context.Context, c *cli, args []string) error {
	fs := flags(c, "serve", "[--addr ADDR] [--keepalive DURATION]")
	addr := fs.String("addr", c.cfg.OpsAddr, "ops API listen address")
	keepalive := fs.Duration("keepalive", 5*time.Minute, "session refresh interval, 0 to disable")
	token := fs.String("token", c.cfg.OpsToken, "bearer token required on /v1 routes (default $OPS_TOKEN)")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	e := c.app.OpsRouter(*token)
	if *keepalive > 0 {
		go c.app.KeepAlive(ctx, *keepalive)
	}

	errCh := make(chan error, 1)
	go func() {
		c.log.Info().Str("addr", *addr).Msg("ops API listening")
		errCh <- e.Start(*addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	c.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		c.log.Warn().Err(err).Msg("ops API shutdown failed")
	}
	return nil
}

func printServices(c *cli, items []domain.Service) {
	tw := table(c)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tPROVIDER\tACTIVE")
	for _, s := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", s.ID, s.Name, domain.FormatAmount(s.Price), firstNonEmpty(s.ProviderName, s.ProviderID), s.IsActive)
	}
	_ = tw.Flush()
}

func table(c *cli) *tabwriter.Writer {
	return tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, domain.Validationf("amount %q is not a number", s)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
