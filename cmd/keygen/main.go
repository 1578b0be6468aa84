// keygen prints license keys from a template without touching the database.
// It is meant for checking a format before saving it on the server.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"keyforge.backend/internal/usecases"
)

const maxCount = 1000

type options struct {
	template string
	count    int
	keys     usecases.KeyOptions
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("keygen", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&opts.template, "template", "t", usecases.DefaultKeyTemplate, "key template, '*' marks a random character")
	fs.IntVarP(&opts.count, "count", "n", 1, "number of keys to print")
	fs.BoolVar(&opts.keys.UseUppercase, "upper", true, "include uppercase letters")
	fs.BoolVar(&opts.keys.UseDigits, "digits", true, "include digits")
	fs.BoolVar(&opts.keys.UseSpecial, "special", false, "include special characters")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return opts, fmt.Errorf("usage of keygen:\n%s", fs.FlagUsages())
		}
		return opts, err
	}
	if opts.count < 1 || opts.count > maxCount {
		return opts, fmt.Errorf("count must be between 1 and %d", maxCount)
	}
	return opts, nil
}

func run(args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	for i := 0; i < opts.count; i++ {
		key, err := usecases.GenerateKey(opts.template, opts.keys)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, key); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
