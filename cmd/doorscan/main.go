// doorscan drives a door session from a scanner in keyboard-wedge mode:
// every line on stdin is one scanned code. Each outcome is printed as it
// arrives and the session tally is printed on exit.
//
// Flags fall back to DOORSCAN_API, DOORSCAN_EVENT, DOORSCAN_TOKEN,
// DOORSCAN_DEDUPE and DOORSCAN_WINDOW.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/iliyamo/event-ticketing/internal/doorsession"
	"github.com/iliyamo/event-ticketing/internal/model"
)

var (
	admitStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	rejectStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	var (
		api    string
		event  uint64
		token  string
		dedupe time.Duration
		window int
	)
	fs := pflag.NewFlagSet("doorscan", pflag.ContinueOnError)
	fs.StringVar(&api, "api", envOr("DOORSCAN_API", "http://localhost:8080"), "ticketing API base URL")
	fs.Uint64Var(&event, "event", envUint("DOORSCAN_EVENT"), "event id this door admits to")
	fs.StringVar(&token, "token", os.Getenv("DOORSCAN_TOKEN"), "access token of a STAFF or ADMIN account")
	fs.DurationVar(&dedupe, "dedupe", envDuration("DOORSCAN_DEDUPE", doorsession.DefaultDedupe), "ignore repeats of a code within this window")
	fs.IntVar(&window, "window", envInt("DOORSCAN_WINDOW", doorsession.DefaultWindow), "number of recent results kept")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if event == 0 {
		return errors.New("--event is required")
	}
	if token == "" {
		return errors.New("--token is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := doorsession.New(doorsession.NewClient(api, event, token, 5*time.Second),
		doorsession.Options{Window: window, Dedupe: dedupe})

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	fmt.Fprintf(out, "scanning for event %d against %s\n", event, api)
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			entry, sent, err := session.Submit(ctx, line)
			if !sent {
				continue
			}
			fmt.Fprintln(out, render(entry, err))
		}
	}

	t := session.Tally()
	fmt.Fprintf(out, "\nscans %d  admitted %d  already used %d  rejected %d  failed %d  suppressed %d\n",
		t.Total(), t.Admitted, t.AlreadyUsed, t.Rejected, t.Failed, t.Suppressed)
	return nil
}

func render(e doorsession.Entry, err error) string {
	ts := dimStyle.Render(e.At.Format("15:04:05"))
	if err != nil {
		if errors.Is(err, doorsession.ErrBackendUnavailable) {
			return fmt.Sprintf("%s %s %s  retry, ticket service unreachable", ts, warnStyle.Render("OFFLINE"), e.Code)
		}
		return fmt.Sprintf("%s %s %s  %v", ts, warnStyle.Render("ERROR"), e.Code, err)
	}
	o := e.Outcome
	switch o.Result {
	case model.ScanAdmitted:
		return fmt.Sprintf("%s %s %s  %s (%s) %s", ts, admitStyle.Render("ADMIT"), e.Code,
			o.AttendeeName, o.IDDocument, dimStyle.Render(o.CategoryName))
	case model.ScanAlreadyUsed:
		used := "earlier"
		if o.UsedAt != nil {
			used = o.UsedAt.Local().Format("15:04:05")
		}
		return fmt.Sprintf("%s %s %s  %s, used at %s", ts, rejectStyle.Render("USED"), e.Code, o.AttendeeName, used)
	}
	return fmt.Sprintf("%s %s %s", ts, rejectStyle.Render("DENY"), e.Code+"  "+string(o.Result))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint(key string) uint64 {
	n, _ := strconv.ParseUint(os.Getenv(key), 10, 64)
	return n
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
