package config

import (
	"flag"
	"os"

	"github.com/bloomweaver/backend/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-r string   redis address (host:port)
//	-s string   JWT HMAC secret key
//	-l bool     enable per-tier message limits
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-r", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.JWTSecret, "s", config.JWTSecret, "secret key")
	fs.BoolVar(&config.LimitsEnabled, "l", config.LimitsEnabled, "enable message limits")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
