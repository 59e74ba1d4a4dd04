package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/w1xm/nexstar_interface/internal/config"
	"github.com/w1xm/nexstar_interface/monitor"
	"github.com/w1xm/nexstar_interface/nexstar"
	"golang.org/x/sync/errgroup"
)

func dialer(cfg *config.Config) monitor.DialFunc {
	if cfg.TCP != "" {
		return func(ctx context.Context) (nexstar.Transport, error) {
			t, err := nexstar.DialTCP(ctx, cfg.TCP)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	return func(context.Context) (nexstar.Transport, error) {
		t, err := nexstar.OpenSerial(cfg.Serial)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := NewServer()
	var opts []nexstar.Option
	if cfg.Trace {
		opts = append(opts, nexstar.WithLogger(log.Default()))
	}
	s.mon = monitor.Connect(ctx, monitor.Config{
		Dial:           dialer(cfg),
		PollInterval:   cfg.PollInterval,
		MountOptions:   opts,
		StatusCallback: s.statusCallback,
	})

	if cfg.RotctldAddr != "" {
		if err := s.ListenRotctld(ctx, cfg.RotctldAddr); err != nil {
			log.Fatal(err)
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.StatusHandler)
	r.HandleFunc("/api/ws", s.StatusSocketHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	srv := &http.Server{
		Handler:      r,
		Addr:         cfg.Addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
