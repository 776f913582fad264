package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags overlays command-line flags.
//
// Supported flags:
//
//	-p int      HTTP port
//	-g string   internal gRPC bind address
//	-d string   PostgreSQL DSN (empty selects the embedded store)
//	-s string   JWT HMAC secret
//	-k int      bcrypt cost
//	-e string   environment name
//	-r string   Redis URL for invalidation broadcast
//	-l string   log level
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-p", "-g", "-d", "-s", "-k", "-e", "-r", "-l"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.IntVar(&cfg.Port, "p", cfg.Port, "HTTP port")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "internal gRPC address")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "JWT secret")
	fs.IntVar(&cfg.HashCost, "k", cfg.HashCost, "bcrypt cost")
	fs.StringVar(&cfg.Environment, "e", cfg.Environment, "environment name")
	fs.StringVar(&cfg.RedisURL, "r", cfg.RedisURL, "Redis URL")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	return fs.Parse(args)
}
