// Command coaty-broker is the reference agent process for a Coaty
// container: it loads a YAML configuration, builds a Container bound
// to the configured broker and storage adapter, and runs it until
// SIGINT or SIGTERM. It does not implement the MQTT broker itself —
// that is an external collaborator per spec §1 — this is the
// container-side companion process an operator points at one.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/coaty-io/coaty-go/buildinfo"
	"github.com/coaty-io/coaty-go/coatyconfig"
	"github.com/coaty-io/coaty-go/container"
	"github.com/coaty-io/coaty-go/object"
	"github.com/coaty-io/coaty-go/store"
)

func main() {
	configPath := flag.String("config", "", "path to container config file")
	name := flag.String("name", "coaty-agent", "identity name advertised for this container")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "version":
			fmt.Println(buildinfo.String())
			return
		case "run":
			runContainer(logger, *configPath, *name)
			return
		default:
			fmt.Fprintf(os.Stderr, "usage: coaty-broker [-config path] [-name id] <run|version>\n")
			os.Exit(1)
		}
	}

	runContainer(logger, *configPath, *name)
}

func runContainer(logger *slog.Logger, configPath, name string) {
	path, err := coatyconfig.FindConfig(configPath)
	var cfg *coatyconfig.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = coatyconfig.Default()
	} else {
		cfg, err = coatyconfig.Load(path)
		if err != nil {
			logger.Error("failed to load config", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("loaded container config", "path", path)
	}

	logger = cfg.NewLogger(os.Stdout)

	adapter, err := openConfiguredStore(cfg)
	if err != nil {
		logger.Error("failed to open storage adapter", "error", err)
		os.Exit(1)
	}

	identity := object.NewIdentity(name)
	commOpts := cfg.CommOptions()
	commOpts.Logger = logger

	c := container.New(identity, commOpts, adapter)

	logger.Info("starting container", "identity", identity.ObjectID, "broker", commOpts.BrokerURL)
	if err := container.RunUntilSignal(context.Background(), c); err != nil {
		logger.Error("container exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("container stopped")
}

// openConfiguredStore opens one configured database entry, or falls
// back to an in-memory adapter when none is configured — a container
// with no controllers that need persistence never has to configure
// one. Entries are visited in map order, so with several configured
// entries which one is opened is not defined.
func openConfiguredStore(cfg *coatyconfig.Config) (store.Adapter, error) {
	for _, db := range cfg.Databases {
		switch db.Adapter {
		case "sqlite":
			return store.Open(db.ConnectionString)
		case "memory":
			return store.NewMemoryAdapter(), nil
		}
	}
	return store.NewMemoryAdapter(), nil
}
