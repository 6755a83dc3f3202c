// Command nutdrv-dummy is a reference driver: it publishes a simulated UPS
// over a DSP socket (internal/dsp) with no real hardware behind it, for
// integration-testing internal/sss and internal/npe end to end.
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/networkupstools/nutd/internal/dsp"
	"github.com/networkupstools/nutd/internal/logging"
	"github.com/networkupstools/nutd/internal/statetree"
)

var cli struct {
	Name       string `default:"dummy" env:"NUTDRV_NAME" help:"UPS name used in log output"`
	SocketPath string `default:"/var/state/ups/dummy-0" env:"NUTDRV_SOCKET" help:"Unix socket path to serve the DSP on"`
	LogsDir    string `default:"/var/log/nut" env:"NUTDRV_LOGS_DIR" help:"directory to store nutdrv-dummy.log"`
	Debug      bool   `default:"false" env:"NUTDRV_DEBUG" help:"enable debug logging to stdout"`
	PollSecs   int    `default:"2" env:"NUTDRV_POLL" help:"seconds between simulated polling updates"`
}

func main() {
	kong.Parse(&cli)

	if cli.Debug {
		logging.SetLevel(logging.LevelDebug)
		log.SetOutput(os.Stdout)
	} else {
		logging.SetLevel(logging.LevelInfo)
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "nutdrv-dummy.log"),
			MaxSize:    5,
			MaxBackups: 1,
			MaxAge:     1,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stdout))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	handler := newDummyHandler()
	driver := dsp.New(cli.Name, handler)
	seedState(driver)

	go pollLoop(ctx, driver, handler, time.Duration(cli.PollSecs)*time.Second)

	if err := driver.Listen(ctx, cli.SocketPath); err != nil {
		log.Fatalf("nutdrv-dummy: %v", err)
	}
	logging.Info("nutdrv-dummy: stopped")
}

// seedState publishes the initial variable set a dummy UPS reports,
// mirroring the handful of always-present variables real drivers such as
// usbhid-ups register at startup before their first poll.
func seedState(d *dsp.Driver) {
	d.SetInfo("device.model", "Dummy UPS")
	d.SetInfo("device.mfr", "Network UPS Tools")
	d.SetInfo("ups.status", "OL")
	d.SetInfo("battery.charge", "100")
	d.SetFlags("battery.charge", statetree.FlagNumber)
	d.SetInfo("input.voltage", "230.0")
	d.SetFlags("input.voltage", statetree.FlagNumber)
	d.SetInfo("input.transfer.low", "196")
	d.SetFlags("input.transfer.low", statetree.FlagRW|statetree.FlagNumber)
	d.AddRange("input.transfer.low", statetree.Range{Min: 176, Max: 204})
	d.SetInfo("ups.test.result", "No test initiated")
	d.AddCmd("test.battery.start.quick")
	d.AddCmd("test.battery.stop")
	d.DataOK()
}

// pollLoop simulates the periodic hardware poll real drivers run by
// republishing ups.status from the handler's state ("OL TEST" while a
// battery test runs, "OL" otherwise), so INSTCMD test.battery.start.quick
// has something to affect. battery.charge keeps its seeded value.
func pollLoop(ctx context.Context, d *dsp.Driver, h *dummyHandler, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.batteryTestRunning() {
				d.SetInfo("ups.status", "OL TEST")
			} else {
				d.SetInfo("ups.status", "OL")
			}
		}
	}
}
