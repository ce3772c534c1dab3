package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/spincam/internal/api"
	"github.com/banshee-data/spincam/internal/bracket"
	"github.com/banshee-data/spincam/internal/capture"
	"github.com/banshee-data/spincam/internal/capturedb"
	"github.com/banshee-data/spincam/internal/config"
	"github.com/banshee-data/spincam/internal/diag"
	"github.com/banshee-data/spincam/internal/genicam"
	"github.com/banshee-data/spincam/internal/timeutil"
	"github.com/banshee-data/spincam/internal/version"
)

var (
	devMode       = flag.Bool("dev", false, "Run against a simulated camera instead of hardware")
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "capture.db", "Path to the capture database")
	configFile    = flag.String("config", "", "Path to a tuning config JSON file")
	cameraSerial  = flag.String("camera", "", "Open the camera with this serial number (default: first camera)")
	migrationsDir = flag.String("migrations", "migrations", "Path to the schema migrations directory")
	plotsDir      = flag.String("plots", "plots", "Directory for generated bracket plots (empty disables)")
)

func main() {
	flag.Parse()

	log.Printf("spincam %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.DefaultTuningConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	var sys genicam.System
	if *devMode {
		cam := genicam.NewSimCamera("SIM-0001", 640, 480)
		sys = genicam.NewSimSystem(cam)
		log.Print("running in dev mode with a simulated camera")
	} else {
		// Hardware enumeration needs the vendor GenTL producer, which
		// is not linked into this build.
		log.Fatal("no camera transport available in this build; run with -dev")
	}
	defer sys.Release()

	dev := capture.NewDevice(sys)
	dev.GrabTimeout = cfg.GetGrabTimeout()
	dev.AutoSoftwareTrigger = cfg.GetAutoSoftwareTrigger()

	var opened bool
	if *cameraSerial != "" {
		opened = dev.OpenSerial(*cameraSerial)
	} else {
		opened = dev.Open(0)
	}
	if !opened {
		log.Fatalf("failed to open camera (serial=%q)", *cameraSerial)
	}
	defer dev.Release()

	br := bracket.New(dev)
	br.WarmupFrames = cfg.GetWarmupFrames()

	cdb, err := capturedb.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open capture database: %v", err)
	}
	defer cdb.Close()

	if _, statErr := os.Stat(*migrationsDir); statErr == nil {
		if err := cdb.MigrateUp(*migrationsDir); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Persist every diagnostic the pipeline raises. Reports are buffered and
	// batch-written off the capture path.
	diagWriter := capturedb.NewDiagnosticWriter(cdb, timeutil.RealClock{}, cfg.GetFlushInterval())
	diag.Subscribe(diagWriter.Enqueue)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		diagWriter.Run(ctx)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes
		if err := cdb.AttachAdminRoutes(mux); err != nil {
			log.Fatalf("failed to attach admin routes: %v", err)
		}

		srv := api.NewServer(dev, br, cdb)
		if *plotsDir != "" {
			srv.EnablePlots(*plotsDir)
		}
		mux.Handle("/", srv.ServeMux())

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
