package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang-wa-broadcast/internal/adapters/gateway/httpgw"
	"golang-wa-broadcast/internal/app"
	"golang-wa-broadcast/internal/config"
	"golang-wa-broadcast/internal/countries"
	"golang-wa-broadcast/internal/domain"
	"golang-wa-broadcast/internal/logging"
)

type options struct {
	mode     string
	country  string
	numbers  string
	file     string
	message  string
	jsonOut  bool
	gateway  string
	logLevel string
}

func main() {
	conf, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	var opts options
	flag.StringVar(&opts.mode, "mode", string(domain.ModeVerify), "send, verify or legacy-verify")
	flag.StringVar(&opts.country, "country", countries.WildcardCode, "ISO country code, or \"all\"")
	flag.StringVar(&opts.numbers, "numbers", "", "comma separated phone numbers")
	flag.StringVar(&opts.file, "file", "", "file with one extracted sheet cell per line")
	flag.StringVar(&opts.message, "message", "", "text to send (send mode)")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the final report as JSON")
	flag.StringVar(&opts.gateway, "gateway", conf.GatewayURL, "gateway base URL")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	log := logging.NewWithWriter(os.Stderr, opts.logLevel)
	if err := run(conf, opts, log); err != nil {
		fmt.Fprintln(os.Stderr, "wa-dispatch:", err)
		os.Exit(1)
	}
}

func run(conf config.Config, opts options, log *slog.Logger) error {
	table, err := countries.Load()
	if err != nil {
		return fmt.Errorf("load countries: %w", err)
	}

	var cells []string
	if opts.file != "" {
		if cells, err = readCells(opts.file); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gateway := httpgw.New(httpgw.Config{BaseURL: opts.gateway, Backoff: conf.RetryBackoff, Logger: log})
	poller := app.NewStatusPoller(gateway, conf.StatusPollInterval, log, nil)
	if state := poller.Poll(ctx); state != domain.ConnectivityConnected {
		fmt.Fprintf(os.Stderr, "gateway is %s\n", state)
	}

	svc := app.NewDispatchService(conf.Dispatch(), gateway, table, log,
		app.WithGate(poller),
		app.WithPublisher(&linePrinter{w: os.Stderr}),
	)

	snap, err := svc.Run(ctx, app.OperationRequest{
		Mode:    domain.Mode(opts.mode),
		Country: opts.country,
		Numbers: []string{opts.numbers},
		Cells:   cells,
		Message: opts.message,
	})
	if err != nil {
		return err
	}
	if err := printReport(os.Stdout, snap, opts.jsonOut); err != nil {
		return err
	}
	if snap.Abandoned {
		return errors.New("interrupted")
	}
	return nil
}

func readCells(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cells: %w", err)
	}
	defer f.Close()

	var cells []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		cells = append(cells, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read cells: %w", err)
	}
	return cells, nil
}

func printReport(w io.Writer, snap app.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	for _, o := range snap.Report.Outcomes {
		line := fmt.Sprintf("%s\t%s\t%s", o.Recipient, o.Status, o.Timestamp)
		if o.Reason != "" {
			line += "\t" + o.Reason
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, snap.Status)
	return err
}

// linePrinter renders progress events as status lines.
type linePrinter struct {
	w io.Writer
}

func (p *linePrinter) Publish(_ context.Context, ev domain.ProgressEvent) error {
	_, err := fmt.Fprintf(p.w, "[%s] %s\n", ev.Mode, ev.Status)
	return err
}
