// Command otpctl is the desktop device client for the OTP automation server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/and161185/otpguard/internal/phone"
	"github.com/gofrs/uuid/v5"
)

func usage() {
	fmt.Fprintf(os.Stderr, `otpctl
Usage:
  otpctl -addr URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  login      -email <email> -password <pw> [-mac <addr>]   (saves token)
  register   -email <email> -password <pw> [-mac <addr>]   (saves token)
  countries
  scripts
  download   -script <id> -country <id> -numbers <file|-> [-out file]
  report     -task <id> -status success|failed [-otp n] [-error msg]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the server's device API.
func main() {
	addr := flag.String("addr", "http://localhost:3001", "server base URL")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("otpctl %s (%s)\n", version, buildDate)
		return
	}

	hc, err := newHTTPClient(*caPath, *insecure)
	if err != nil {
		fail(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	switch cmd {
	case "login", "register":
		err = cmdLogin(ctx, newAPIClient(*addr, "", hc), args, cmd == "register", os.Stdout)
	case "countries", "scripts", "download", "report":
		tf, lerr := loadToken()
		if lerr != nil {
			fail(lerr)
		}
		cli := newAPIClient(*addr, tf.AccessToken, hc)
		switch cmd {
		case "countries":
			err = cmdCountries(ctx, cli, os.Stdout)
		case "scripts":
			err = cmdScripts(ctx, cli, os.Stdout)
		case "download":
			err = cmdDownload(ctx, cli, args, os.Stdout)
		case "report":
			err = cmdReport(ctx, cli, args, os.Stdout)
		}
	default:
		usage()
	}
	if err != nil {
		fail(err)
	}
}

// errUsage marks bad command-line input; main exits with 2 for it.
var errUsage = errors.New("usage")

func usageErr(msg string) error { return fmt.Errorf("%s: %w", msg, errUsage) }

// ---- commands ----

func cmdLogin(ctx context.Context, cli *apiClient, args []string, register bool, w io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	mac := fs.String("mac", "", "device MAC (default: first network interface)")
	if err := fs.Parse(args); err != nil {
		return usageErr(err.Error())
	}
	if *email == "" || *password == "" {
		return usageErr("need -email and -password")
	}
	if *mac == "" {
		m, err := localMAC()
		if err != nil {
			return err
		}
		*mac = m
	}

	res, err := cli.login(ctx, *email, *password, *mac, register)
	if err != nil {
		return err
	}
	exp := res.ExpiresAt
	if exp.IsZero() {
		exp = tokenExpiry(res.Token, time.Now().Add(24*time.Hour))
	}
	tf := tokenFile{AccessToken: res.Token, ExpiresAt: exp, UserID: res.User.ID}
	if res.User.MACAddress != nil {
		tf.MAC = *res.User.MACAddress
	}
	if err := saveToken(tf); err != nil {
		return err
	}
	fmt.Fprintf(w, "ok (device %s)\n", tf.MAC)
	return nil
}

func cmdCountries(ctx context.Context, cli *apiClient, w io.Writer) error {
	list, err := cli.countries(ctx)
	if err != nil {
		return err
	}
	for _, c := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.ID, c.Name, c.Code, c.NumberLength)
	}
	return nil
}

func cmdScripts(ctx context.Context, cli *apiClient, w io.Writer) error {
	list, err := cli.scripts(ctx)
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%dB\t%s\n", s.ID, s.AppName, s.FileName, s.FileSize, s.UploadedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func cmdDownload(ctx context.Context, cli *apiClient, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	scriptID := fs.String("script", "", "script id")
	countryID := fs.String("country", "", "country id")
	numbersFile := fs.String("numbers", "", "file with one phone number per line ('-'=stdin)")
	out := fs.String("out", "", "write the personalized script here (default stdout)")
	if err := fs.Parse(args); err != nil {
		return usageErr(err.Error())
	}
	if *scriptID == "" || *countryID == "" || *numbersFile == "" {
		return usageErr("need -script, -country and -numbers")
	}
	raw, err := readAll(*numbersFile)
	if err != nil {
		return err
	}
	numbers := phone.SplitLines(string(raw))
	if len(numbers) == 0 {
		return usageErr("numbers file is empty")
	}

	d, err := cli.download(ctx, *scriptID, *countryID, numbers)
	if err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprint(w, d.Script)
		return nil
	}
	if err := os.WriteFile(*out, []byte(d.Script), 0o600); err != nil {
		return err
	}
	printJSON(w, map[string]any{"taskId": d.TaskID, "validCount": d.ValidCount, "file": *out})
	return nil
}

func cmdReport(ctx context.Context, cli *apiClient, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	taskID := fs.String("task", "", "task id returned by download")
	status := fs.String("status", "", "success or failed")
	otp := fs.Int("otp", 0, "number of OTPs processed")
	msg := fs.String("error", "", "error message for failed runs")
	if err := fs.Parse(args); err != nil {
		return usageErr(err.Error())
	}
	if _, err := uuid.FromString(*taskID); err != nil {
		return usageErr("need a valid -task id")
	}
	if *status != "success" && *status != "failed" {
		return usageErr("-status must be success or failed")
	}
	if *otp < 0 {
		return usageErr("-otp must not be negative")
	}
	if err := cli.report(ctx, *taskID, *status, *otp, *msg); err != nil {
		return err
	}
	fmt.Fprintln(w, "ok")
	return nil
}

// ---- helpers ----

func fail(err error) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		fmt.Fprintln(os.Stderr, ae.Error())
		os.Exit(1)
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
