package main

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for the airband channelizer:
 *
 *			Multichannel FFT channelizer for SDR I/Q streams.
 *			AM and NFM demodulation with squelch and AGC.
 *			Frequency scanning with activity tagging.
 *			File, UDP and soundcard audio outputs.
 *			HTTP/websocket monitoring.
 *
 *----------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/boondock/airband"
	"github.com/boondock/airband/monitor"
)

var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", "airband.yaml", "config file path")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := pflag.BoolP("version", "v", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println("airband", version)
		return
	}

	lvl, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)

	cfg, err := airband.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("loading config", "err", err)
	}

	radio, err := airband.NewRadio(cfg)
	if err != nil {
		log.Fatal("building pipeline", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.Listen != "" {
		srv := monitor.New(cfg.Monitor.Listen,
			func() any { return radio.Status() },
			radio.SpectrumSnapshot)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Error("monitor server", "err", err)
			}
		}()
	}

	if err := radio.Run(ctx); err != nil {
		log.Fatal("pipeline", "err", err)
	}
	log.Info("shutdown complete")
}
