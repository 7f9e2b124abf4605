// Command admin-token prints a bearer token for the admin API.
package main

import (
	"flag"
	"fmt"
	"os"

	"telegram-yt-relay/internal/config"
	"telegram-yt-relay/internal/infra/api"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to admin.token_ttl")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	life := cfg.Admin.TokenTTL
	if *ttl > 0 {
		life = *ttl
	}
	tok, err := api.NewAuthenticator(cfg.Admin.JWTSecret, life).Mint(*subject)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mint:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
