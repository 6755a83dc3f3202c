// Command nutd is the network protocol server (upsd equivalent): it
// shadows one or more driver sockets (internal/sss) and answers the line
// protocol (internal/npe) against them, with an embedded /metrics and
// /healthz admin listener (internal/adminhttp).
package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/serverconfig"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cli struct {
	ConfigPath  string `default:"/etc/nut/nutd.yml" env:"NUTD_CONFIG" help:"path to the nutd.yml overlay"`
	ListenAddr  string `default:"0.0.0.0" env:"NUTD_LISTEN_ADDR" help:"address the line protocol listens on"`
	Port        int    `default:"3493" env:"NUTD_PORT" help:"port the line protocol listens on"`
	AdminAddr   string `default:"127.0.0.1:9191" env:"NUTD_ADMIN_ADDR" help:"address:port for /metrics and /healthz"`
	UsersDB     string `default:"/etc/nut/upsd.users" env:"NUTD_USERS_DB" help:"path to the upsd.users ACL file"`
	MaxAgeSecs  int    `default:"15" env:"NUTD_MAXAGE" help:"seconds a driver shadow may go unheard from before it's marked stale"`
	LogsDir     string `default:"/var/log/nut" env:"NUTD_LOGS_DIR" help:"directory to store nutd.log"`
	Debug       bool   `default:"false" env:"NUTD_DEBUG" help:"enable debug logging to stdout"`
	IdleTimeout int    `default:"120" env:"NUTD_IDLE_TIMEOUT" help:"seconds a client connection may sit idle before disconnect"`
}

func main() {
	kong.Parse(&cli)

	fileCfg, err := serverconfig.Load(cli.ConfigPath)
	if err != nil {
		log.Printf("WARNING: failed to load %s: %v", cli.ConfigPath, err)
	}
	applyFileConfig(fileCfg)

	if cli.Debug {
		logging.SetLevel(logging.LevelDebug)
		log.SetOutput(os.Stdout)
	} else {
		logging.SetLevel(logging.LevelInfo)
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "nutd.log"),
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stdout))
	}

	log.Printf("starting nutd v%s", Version)

	drivers := driversFromConfig(fileCfg)
	if len(drivers) == 0 {
		log.Fatalf("no drivers configured: set drivers in %s", cli.ConfigPath)
	}

	if err := run(drivers); err != nil {
		log.Fatalf("nutd: %v", err)
	}
}
