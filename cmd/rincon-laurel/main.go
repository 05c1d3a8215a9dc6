package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/config"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/api"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/app"
	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/webserver"
)

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "rincon-laurel.yml", "config file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all tables, then exit")
	seed     = flag.Bool("seed", false, "insert the sample catalog when empty, then exit")
)

var (
	// set by the build
	BuildVersion string
	BuildTime    string
)

func printVersion() {
	fmt.Printf("rincon-laurel version %s build at %s\n", BuildVersion, BuildTime)
}

func main() {
	flag.Parse()
	if *h {
		flag.Usage()
		os.Exit(0)
	}
	if *showVer {
		printVersion()
		os.Exit(0)
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.DropAll()
		application.InitDb()
		return
	}
	if *seed {
		count, err := application.SeedCatalog()
		if err != nil {
			zap.S().Fatalf("seed catalog: %s", err.Error())
		}
		zap.S().Infof("seeded %d products", count)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webserver.Init(application)
	api.Init()
	application.StartBackgroundJobs(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Listen()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("server exited: %s", err.Error())
	}
}
