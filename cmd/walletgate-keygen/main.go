// walletgate-keygen prints fresh session keys, one per line, in the
// base64url form the gateway reads from the secret store.
//
//	aws ssm put-parameter --type SecureString --name /jef/session/key \
//	    --value "$(walletgate-keygen)"
package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/jefoffice/walletgate/keys"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var count int
	fs := pflag.NewFlagSet("walletgate-keygen", pflag.ContinueOnError)
	fs.IntVarP(&count, "count", "n", 1, "number of keys to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("--count must be >= 1, got %d", count)
	}

	for i := 0; i < count; i++ {
		key, err := generate(rand.Reader)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, key.Encode()); err != nil {
			return err
		}
	}
	return nil
}

func generate(r io.Reader) (keys.Key, error) {
	var key keys.Key
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return keys.Key{}, fmt.Errorf("read random key: %w", err)
	}
	return key, nil
}
