package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/do/v2"
	"github.com/urfave/cli/v2"

	"epistolary-lite/internal/alerts"
	"epistolary-lite/internal/app"
	"epistolary-lite/internal/auth"
	"epistolary-lite/internal/cache"
	"epistolary-lite/internal/client"
	"epistolary-lite/internal/fetch"
	"epistolary-lite/internal/live"
	"epistolary-lite/internal/model"
)

func commands(con *console) []*cli.Command {
	cmds := []*cli.Command{
		{
			Name:     "register",
			Usage:    "create an account",
			Category: "account",
			Action:   con.register,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "full name"},
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "email address"},
				&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "username"},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password, read from stdin when omitted"},
			},
		},
		{
			Name:     "login",
			Usage:    "sign in",
			Category: "account",
			Action:   con.login,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "username", EnvVars: []string{"EPISTOLARY_USERNAME"}},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "password, read from stdin when omitted"},
			},
		},
		{
			Name:     "logout",
			Usage:    "sign out",
			Category: "account",
			Action:   con.logout,
		},
		{
			Name:     "whoami",
			Usage:    "show the signed in user",
			Category: "account",
			Action:   con.whoami,
		},
		{
			Name:     "status",
			Usage:    "send a status request to the epistolary api",
			Category: "client",
			Action:   con.status,
		},
		{
			Name:     "list",
			Usage:    "list readings one page at a time",
			Category: "readings",
			Action:   con.list,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "page", Usage: "page token to start from"},
				&cli.IntFlag{Name: "pages", Usage: "number of pages to walk forward", Value: 1},
			},
		},
		{
			Name:      "add",
			Usage:     "add a reading by link",
			ArgsUsage: "link",
			Category:  "readings",
			Action:    con.add,
		},
		{
			Name:      "show",
			Usage:     "show a reading",
			ArgsUsage: "id",
			Category:  "readings",
			Action:    con.show,
		},
		{
			Name:      "edit",
			Usage:     "edit a reading",
			ArgsUsage: "id",
			Category:  "readings",
			Action:    con.edit,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "new title"},
				&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "new description"},
				&cli.StringFlag{Name: "started", Usage: "when reading started: now, none or an RFC 3339 timestamp"},
				&cli.StringFlag{Name: "finished", Usage: "when reading finished: now, none or an RFC 3339 timestamp"},
				&cli.StringFlag{Name: "archived", Usage: "when the reading was archived: now, none or an RFC 3339 timestamp"},
			},
		},
		{
			Name:     "watch",
			Usage:    "print live updates until interrupted",
			Category: "readings",
			Action:   con.watch,
		},
		{
			Name:      "fetch",
			Usage:     "fetch a webpage to see how it is described",
			ArgsUsage: "url [url ...]",
			Category:  "debug",
			Action:    con.fetch,
			Flags: []cli.Flag{
				&cli.DurationFlag{Name: "timeout", Usage: "how long to wait for each page", Value: 10 * time.Second},
			},
		},
	}

	for _, cmd := range cmds {
		cmd.OnUsageError = func(_ *cli.Context, err error, _ bool) error {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	return cmds
}

// expected reports whether err is a user facing failure that has already been
// explained, as opposed to a bug worth reporting.
func expected(err error) bool {
	var apiErr *client.Error
	var formErr *app.ValidationError
	return errors.As(err, &apiErr) || errors.As(err, &formErr) || errors.Is(err, live.ErrUnauthorized)
}

func usage(c *cli.Context) error {
	return fmt.Errorf("%w: epistolary %s %s", errUsage, c.Command.Name, c.Command.ArgsUsage)
}

func (con *console) printAlerts() {
	for _, a := range con.app.Alerts.List() {
		fmt.Fprintf(con.stderr, "[%s] %s: %s\n", a.Severity, alerts.Header(a), a.Message)
		con.app.Alerts.Dismiss(a.ID)
	}
}

func (con *console) prompt(label string) (string, error) {
	fmt.Fprintf(con.stderr, "%s: ", label)
	line, err := bufio.NewReader(con.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (con *console) password(c *cli.Context) (string, error) {
	if pw := c.String("password"); pw != "" {
		return pw, nil
	}
	return con.prompt("password")
}

func (con *console) register(c *cli.Context) (err error) {
	in := &model.RegisterRequest{
		FullName: c.String("name"),
		Email:    c.String("email"),
		Username: c.String("username"),
	}
	if in.Password, err = con.password(c); err != nil {
		return err
	}

	if rep := con.app.API.Register(c.Context, in); !rep.OK() {
		return rep.Err
	}
	fmt.Fprintf(con.stdout, "registered %s, run: epistolary login -u %s\n", in.Username, in.Username)
	return nil
}

func (con *console) login(c *cli.Context) (err error) {
	form := app.LoginForm{Username: c.String("username")}
	if form.Username != "" {
		if form.Password, err = con.password(c); err != nil {
			return err
		}
	}

	var claims model.AuthClaims
	if claims, err = con.app.LoginPage().Submit(c.Context, form); err != nil {
		return err
	}
	fmt.Fprintf(con.stdout, "signed in as %s until %s\n", claims.Username, humanize.Time(time.Unix(claims.Exp, 0)))
	return nil
}

func (con *console) logout(c *cli.Context) error {
	if err := con.app.Navbar().Logout(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(con.stdout, "signed out")
	return nil
}

func (con *console) whoami(c *cli.Context) error {
	claims, ok := con.app.Navbar().User()
	if !ok {
		fmt.Fprintln(con.stdout, model.AnonymousUsername)
		return nil
	}
	fmt.Fprintf(con.stdout, "%s (session expires %s)\n", claims.Username, humanize.Time(time.Unix(claims.Exp, 0)))
	return nil
}

func (con *console) status(c *cli.Context) error {
	status := con.app.API.Status(c.Context)
	fmt.Fprintf(con.stdout, "status:  %s\nuptime:  %s\nversion: %s\n", status.Status, status.Uptime, status.Version)
	return nil
}

func (con *console) list(c *cli.Context) error {
	home, err := con.app.HomePage()
	if err != nil {
		return err
	}
	if token := c.String("page"); token != "" {
		home.SetPage(c.Context, token)
	}

	view, err := home.Load(c.Context)
	for i := 1; ; i++ {
		if err != nil {
			return err
		}
		if view.Status == cache.StatusError {
			return view.Err
		}
		printPage(con.stdout, view.Data)

		if i >= c.Int("pages") {
			break
		}
		if _, ok := home.Next(c.Context); !ok {
			break
		}
		view, err = home.Wait(c.Context)
	}

	if view.NextToken != "" {
		fmt.Fprintf(con.stdout, "\nnext: epistolary list -page %s\n", view.NextToken)
	}
	return nil
}

func printPage(w io.Writer, page *model.Page) {
	if page == nil || len(page.Readings) == 0 {
		fmt.Fprintln(w, "no readings")
		return
	}
	for _, r := range page.Readings {
		fmt.Fprintf(w, "%6d  %-8s  %s  (added %s)\n", r.ID, r.DeriveStatus(), r.Title, ago(r.Created))
	}
}

func (con *console) add(c *cli.Context) error {
	if c.NArg() != 1 {
		return usage(c)
	}

	r, err := con.app.CreateReadingForm().Submit(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(con.stdout, "%d  %s\n", r.ID, r.Title)
	return nil
}

func readingID(c *cli.Context) (int64, error) {
	if c.NArg() != 1 {
		return 0, usage(c)
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid reading id %q", c.Args().First())
	}
	return id, nil
}

func (con *console) detail(c *cli.Context) (*app.ReadingDetail, *model.Reading, error) {
	id, err := readingID(c)
	if err != nil {
		return nil, nil, err
	}

	detail, err := con.app.ReadingDetail(id)
	if err != nil {
		return nil, nil, err
	}
	r, err := detail.Load(c.Context)
	if err != nil {
		return nil, nil, err
	}
	return detail, r, nil
}

func (con *console) show(c *cli.Context) error {
	_, r, err := con.detail(c)
	if err != nil {
		return err
	}
	printReading(con.stdout, r)
	return nil
}

func printReading(w io.Writer, r *model.Reading) {
	fmt.Fprintf(w, "%s\n%s\n", r.Title, r.Link)
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n\n", r.Description)
	}
	fmt.Fprintf(w, "status:   %s\n", r.DeriveStatus())
	fmt.Fprintf(w, "added:    %s\n", ago(r.Created))
	if !r.Started.IsZero() {
		fmt.Fprintf(w, "started:  %s\n", ago(r.Started))
	}
	if !r.Finished.IsZero() {
		fmt.Fprintf(w, "finished: %s\n", ago(r.Finished))
	}
	if !r.Archived.IsZero() {
		fmt.Fprintf(w, "archived: %s\n", ago(r.Archived))
	}
}

// parseTime accepts "now", "none" or an RFC 3339 timestamp; none is the zero time.
func parseTime(raw string, now time.Time) (time.Time, error) {
	switch raw {
	case "now":
		return now.UTC(), nil
	case "", "none":
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected now, none or an RFC 3339 timestamp", raw)
	}
	return t, nil
}

func (con *console) edit(c *cli.Context) error {
	detail, r, err := con.detail(c)
	if err != nil {
		return err
	}

	form := app.FormFor(r)
	if c.IsSet("title") {
		form.Title = c.String("title")
	}
	if c.IsSet("description") {
		form.Description = c.String("description")
	}

	now := time.Now()
	for name, dst := range map[string]*time.Time{
		"started":  &form.Started,
		"finished": &form.Finished,
		"archived": &form.Archived,
	} {
		if !c.IsSet(name) {
			continue
		}
		if *dst, err = parseTime(c.String(name), now); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
	}

	updated, err := detail.Save(c.Context, form)
	if err != nil {
		return err
	}
	printReading(con.stdout, updated)
	return nil
}

func (con *console) watch(c *cli.Context) error {
	if _, ok := con.app.Navbar().User(); !ok {
		return auth.ErrLoginRequired
	}

	listener, err := do.Invoke[*live.Listener](con.injector)
	if err != nil {
		return err
	}
	updates, unsubscribe := listener.Subscribe()
	defer unsubscribe()

	go func() {
		for u := range updates {
			reading := &model.Reading{}
			if err := json.Unmarshal(u.Body, reading); err != nil {
				continue
			}
			fmt.Fprintf(con.stdout, "%s  %-15s  %d  %s\n", time.Now().Format(time.Kitchen), u.Event, reading.ID, reading.Title)
		}
	}()

	fmt.Fprintf(con.stderr, "watching %s\n", listener.URL())
	return listener.Run(c.Context)
}

func (con *console) fetch(c *cli.Context) error {
	if c.NArg() == 0 {
		return usage(c)
	}

	fetcher := fetch.New(c.Duration("timeout"))
	enc := json.NewEncoder(con.stdout)
	enc.SetIndent("", "  ")
	for _, link := range c.Args().Slice() {
		doc, err := fetcher.Fetch(c.Context, link)
		if err != nil {
			return fmt.Errorf("could not fetch %s: %w", link, err)
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
	return nil
}

func ago(t model.Timestamp) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t.Time)
}
