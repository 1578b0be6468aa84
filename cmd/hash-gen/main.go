package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"keyforge.backend/pkg/crypto"
)

var (
	stdout         io.Writer = os.Stdout
	stdin          io.Reader = os.Stdin
	generateHashFn           = crypto.HashPassword
	fatalfFn                 = log.Fatalf
)

// resolvePassword takes the first argument, or one line from stdin so the
// password stays out of shell history.
func resolvePassword(args []string, in io.Reader) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", err
	}
	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return "", errors.New("password required as argument or on stdin")
	}
	return password, nil
}

func run(args []string) error {
	password, err := resolvePassword(args, stdin)
	if err != nil {
		return err
	}
	hash, err := generateHashFn(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fatalfFn("hash-gen: %v", err)
	}
}
