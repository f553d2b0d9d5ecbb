package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-acme/lego/platform/config/env"
	log "github.com/sirupsen/logrus"
)

var (
	// Flags
	configF      = flag.String("config", "", "optional YAML config file")
	adapterF     = flag.String("adapter", zeroAdapter, "adapter name, e.g. hci0")
	addrF        = flag.String("fridgeaddr", "", "address of remote peripheral (MAC on Linux, UUID on OS X)")
	timeoutF     = flag.Duration("timeout", 0, "overall program timeout, 0 to run forever")
	pollrateF    = flag.Duration("pollrate", 5*time.Second, "status query polling rate")
	httpPortF    = flag.String("httpport", "8080", "port for the JSON/HTML status server")
	storagePathF = flag.String("storagepath", "./var/local/homekitdb", "path for storage of homekit pairing data")
	hkPinF       = flag.String("homekitpin", "80000000", "homekit pairing PIN")
)

func main() {
	flag.Parse()

	// Start from the config file, let explicitly set flags win, then env.
	var cfg Config
	if *configF != "" {
		var err error
		cfg, err = loadConfig(*configF)
		if err != nil {
			log.Fatal(err)
		}
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["adapter"] || cfg.Adapter == "" {
		cfg.Adapter = *adapterF
	}
	if set["fridgeaddr"] || cfg.FridgeAddr == "" {
		cfg.FridgeAddr = *addrF
	}
	if set["timeout"] {
		cfg.Timeout = *timeoutF
	}
	if set["pollrate"] || cfg.Pollrate == 0 {
		cfg.Pollrate = *pollrateF
	}
	if set["httpport"] || cfg.HTTPPort == "" {
		cfg.HTTPPort = *httpPortF
	}
	if set["storagepath"] || cfg.StoragePath == "" {
		cfg.StoragePath = *storagePathF
	}
	if set["homekitpin"] || cfg.HomekitPin == "" {
		cfg.HomekitPin = *hkPinF
	}

	// Use env to override app settings
	cfg.Adapter = env.GetOrDefaultString("ADAPTER_NAME", cfg.Adapter)
	cfg.FridgeAddr = env.GetOrDefaultString("FRIDGE_ADDR", cfg.FridgeAddr)
	cfg.Pollrate = env.GetOrDefaultSecond("POLLRATE_SEC", cfg.Pollrate)
	cfg.Timeout = env.GetOrDefaultSecond("TIMEOUT_SEC", cfg.Timeout)
	cfg.HTTPPort = env.GetOrDefaultString("HTTP_PORT", cfg.HTTPPort)
	cfg.StoragePath = env.GetOrDefaultString("STORAGE_PATH", cfg.StoragePath)

	// env vars
	LOGLEVEL := os.Getenv("LOGLEVEL")
	switch LOGLEVEL {
	case "panic":
		log.SetLevel(log.PanicLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "trace":
		log.SetLevel(log.TraceLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	if cfg.FridgeAddr == "" {
		log.Fatal("No fridge address; set -fridgeaddr or FRIDGE_ADDR")
	}

	log.Info("pollrate ", cfg.Pollrate)

	// main context
	ctx := context.Background()
	cancel := func() {}
	if cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Subtask quit response channels
	wg := sync.WaitGroup{}

	// Subtask contexts
	clientContext, cancelClient := context.WithCancel(ctx)
	defer cancelClient()

	HKClientContext, cancelHKClientContext := context.WithCancel(ctx)
	defer cancelHKClientContext()

	fr := &Fridge{}

	// Listen for control-c subtask
	go func() {
		// We must use a buffered channel or risk missing the signal
		// if we're not ready to receive when the signal is sent.
		sig := make(chan os.Signal, 1)
		signal.Notify(
			sig,
			syscall.SIGTERM,
			syscall.SIGHUP,  // kill -SIGHUP XXXX
			syscall.SIGINT,  // kill -SIGINT XXXX or Ctrl+c
			syscall.SIGQUIT, // kill -SIGQUIT XXXX
		)
		log.Trace("Listening for signals")
		s := <-sig
		log.Debug("Got signal:", s)
		cancel()
	}()

	// Kick off bluetooth client
	go func() {
		log.Debug("Launching client")
		err := Client(clientContext, &wg, fr, cfg.Adapter, cfg.FridgeAddr, cfg.Pollrate)
		if err == context.Canceled || err == context.DeadlineExceeded {
			log.Debug("Client: ", err)
		} else if err != nil {
			log.Error(err)
		}
		log.Debug("Client done")
	}()

	// Kick off homekit bridge
	go HKClient(HKClientContext, &wg, cfg.StoragePath, cfg.HomekitPin, fr)

	// Kick off status server
	go JSONClient(ctx, cfg.HTTPPort, fr)

	log.Trace("Main waiting...")
	<-ctx.Done()
	log.Debug("Main context canceled")

	// bail hard if this takes too long
	go func() {
		finalTO := 30 * time.Second
		log.Debugf("Waiting %v then exiting", finalTO)
		time.AfterFunc(finalTO, func() {
			panic("Took too long to exit\n")
		})
	}()

	log.Debug("Waiting for wait group...")
	wg.Wait()
	log.Trace("Wait group done waiting")
}
