package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrknox1977/fceux/internal/command"
	"github.com/jrknox1977/fceux/internal/nes"
	"github.com/jrknox1977/fceux/internal/rest"
	"github.com/jrknox1977/fceux/pkg/log"
	"github.com/jrknox1977/fceux/pkg/utils"
)

func main() {
	romFile := flag.String("rom", "", "ROM file to load (.nes, .zip, .7z, .gz)")
	port := flag.Int("port", 8080, "REST API listen port (loopback only)")
	queueSize := flag.Int("queue-size", command.DefaultMaxSize, "command queue capacity")
	paused := flag.Bool("paused", false, "start with emulation paused")
	flag.Parse()

	l := log.New()
	console := nes.New(nes.WithLogger(l), nes.WithQueueSize(*queueSize))

	if *romFile != "" {
		rom, err := utils.LoadFile(*romFile)
		if err != nil {
			l.Errorf("load %s: %v", *romFile, err)
			os.Exit(1)
		}
		cart, err := nes.NewCartridge(rom, *romFile)
		if err != nil {
			l.Errorf("load %s: %v", *romFile, err)
			os.Exit(1)
		}
		console.Insert(cart)
		l.Infof("loaded %s (mapper %d, %s mirroring, battery=%t)", cart.Name, cart.Mapper, cart.Mirror, cart.Battery)
	}
	if *paused {
		console.SetPaused(true)
	}

	server := rest.NewServer(console,
		rest.WithLogger(l),
		rest.WithAddr(fmt.Sprintf("127.0.0.1:%d", *port)),
	)
	if err := server.Start(); err != nil {
		l.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		l.Infof("shutting down")
		cancel()
	}()

	console.Run(ctx)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Stop(shutdownCtx); err != nil {
		l.Errorf("shutdown: %v", err)
	}
}
