// AngelaMos | 2026
// main.go

package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carterperez-dev/portfolio-backend/internal/auth"
)

// keygen writes the ES256 key pairs for access and refresh tokens.
func main() {
	dir := flag.String("dir", "keys", "output directory for PEM files")
	force := flag.Bool("force", false, "overwrite existing keys")
	flag.Parse()

	if err := run(*dir, *force); err != nil {
		slog.Error("keygen failed", "error", err)
		os.Exit(1)
	}
}

func run(dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	for _, kind := range []string{"access", "refresh"} {
		priv := filepath.Join(dir, kind+"_private.pem")
		pub := filepath.Join(dir, kind+"_public.pem")

		if _, err := os.Stat(priv); err == nil && !force {
			slog.Info("key exists, skipping", "path", priv)
			continue
		}

		if err := auth.GenerateKeyPair(priv, pub); err != nil {
			return fmt.Errorf("%s key pair: %w", kind, err)
		}
		slog.Info("key pair written", "private", priv, "public", pub)
	}

	return nil
}
