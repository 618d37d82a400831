// ledgerctl inspects and administers a running interview booking service
// over its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"interviewdesk/pkg/client"
	"interviewdesk/pkg/model"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

const (
	envBaseURL     = "INTERVIEWDESK_URL"
	defaultBaseURL = "http://localhost:8080"
)

var errUsage = errors.New("usage error")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	baseURL := os.Getenv(envBaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	global := pflag.NewFlagSet("ledgerctl", pflag.ContinueOnError)
	global.SetOutput(stderr)
	global.SetInterspersed(false)
	global.StringVar(&baseURL, "url", baseURL, "service base URL (env "+envBaseURL+")")
	timeout := global.Duration("timeout", 30*time.Second, "request timeout")

	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, global)
			return nil
		}
		return err
	}
	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr, global)
		return errUsage
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	bookings := client.NewBookingClient(baseURL)

	switch rest[0] {
	case "slots":
		return runSlots(ctx, bookings, rest[1:], stdout, stderr)
	case "dates":
		return runDates(ctx, bookings, stdout)
	case "reserve":
		return runReserve(ctx, bookings, rest[1:], stdout, stderr)
	case "release-all":
		return runReleaseAll(ctx, bookings, rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr, global)
		return errUsage
	}
}

func runSlots(ctx context.Context, bookings *client.BookingClient, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("slots", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	date := flags.String("date", "", "show every slot of this date (YYYY-MM-DD) instead of the booked ones")
	if err := flags.Parse(args); err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if *date != "" {
		slots, err := bookings.DaySlots(ctx, *date)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "TIME\tSTATUS")
		for _, s := range slots {
			status := "available"
			if s.Booked {
				status = "booked"
			}
			fmt.Fprintf(w, "%s\t%s\n", s.Time, status)
		}
		return nil
	}

	slots, err := bookings.OccupiedSlots(ctx)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintln(w, "No bookings.")
		return nil
	}
	fmt.Fprintln(w, "DATE\tTIME")
	for _, s := range slots {
		fmt.Fprintf(w, "%s\t%s\n", s.Date, s.Time)
	}
	return nil
}

func runDates(ctx context.Context, bookings *client.BookingClient, stdout io.Writer) error {
	dates, err := bookings.Dates(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "DATE\tDAY")
	for _, d := range dates {
		fmt.Fprintf(w, "%s\t%s\n", d.Date, d.Label)
	}
	return nil
}

func runReserve(ctx context.Context, bookings *client.BookingClient, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("reserve", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	var req model.ReservationRequest
	flags.StringVar(&req.Date, "date", "", "slot date, YYYY-MM-DD")
	flags.StringVar(&req.Time, "time", "", `slot time label, e.g. "9:00 AM ET"`)
	flags.StringVar(&req.Email, "email", "", "requester email")
	key := flags.String("idempotency-key", "", "retry-safe request key (default: random)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if req.Date == "" || req.Time == "" || req.Email == "" {
		fmt.Fprintln(stderr, "reserve needs --date, --time and --email")
		return errUsage
	}
	if *key == "" {
		*key = uuid.NewString()
	}

	res, err := bookings.Reserve(ctx, req, *key)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Booked %s %s for %s\n", res.Booking.Key.Date, res.Booking.Key.Time, res.Booking.Record.Requester)
	fmt.Fprintf(stdout, "Meeting: %s\n", res.Booking.Record.Meeting.JoinURL)
	if !res.NotificationSent {
		fmt.Fprintln(stdout, "Warning: the confirmation email could not be sent.")
	}
	return nil
}

func runReleaseAll(ctx context.Context, bookings *client.BookingClient, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("release-all", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	yes := flags.Bool("yes", false, "confirm deleting every meeting and booking")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if !*yes {
		fmt.Fprintln(stderr, "release-all deletes every meeting room and clears the ledger; pass --yes to confirm")
		return errUsage
	}

	summary, err := bookings.ReleaseAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Released %d of %d meeting rooms, removed %d bookings.\n",
		summary.Released, summary.Attempted, summary.Removed)
	return nil
}

func printUsage(w io.Writer, global *pflag.FlagSet) {
	fmt.Fprint(w, `ledgerctl administers the interview booking ledger.

Usage:
  ledgerctl [--url URL] <command> [flags]

Commands:
  slots [--date YYYY-MM-DD]   list booked slots, or every slot of one date
  dates                       list the bookable dates
  reserve --date --time --email
                              book a slot
  release-all --yes           delete every meeting room and clear the ledger

Global flags:
`)
	fmt.Fprint(w, global.FlagUsages())
}
