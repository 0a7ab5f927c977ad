// Command stafftoken mints an access token for a staff terminal or an
// administrator. Identity is managed outside the engine; this is the
// operator's way to hand a terminal its credentials.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/iliyamo/restaurant-order-engine/internal/config"
	"github.com/iliyamo/restaurant-order-engine/internal/utils"
)

func main() {
	user := flag.String("user", "", "staff member or terminal id (JWT sub)")
	role := flag.String("role", "STAFF", "STAFF or ADMIN")
	ttl := flag.Int("ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	flag.Parse()

	if strings.TrimSpace(*user) == "" {
		fmt.Fprintln(os.Stderr, "stafftoken: -user is required")
		flag.Usage()
		os.Exit(2)
	}
	r := strings.ToUpper(strings.TrimSpace(*role))
	if r != "STAFF" && r != "ADMIN" {
		fmt.Fprintf(os.Stderr, "stafftoken: unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg := config.LoadTokenConfig()
	minutes := cfg.AccessTTLMin
	if *ttl > 0 {
		minutes = *ttl
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, strings.TrimSpace(*user), r, minutes)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stafftoken:", err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format("2006-01-02 15:04 MST"))
}
