package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"matchbook/config"
	"matchbook/domain/book"
	"matchbook/infra/kafka"
	"matchbook/infra/logging"
	"matchbook/infra/metrics"
	"matchbook/infra/outbox"
	"matchbook/infra/sequence"
	"matchbook/infra/wal"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/quotefeed"
	"matchbook/service"
	"matchbook/snapshot"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config, empty for defaults")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.New("info", false)
		boot.Fatal().Err(err).Msg("config load failed")
	}
	log := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	// ---------------- Metrics ----------------

	reg := metrics.Init()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			log.Error().Err(err).Msg("metrics server exited")
		}
	}()

	// ---------------- Outbox ----------------

	out, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("outbox open failed")
	}
	defer out.Close()

	// ---------------- Quote feed ----------------

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var jobs sync.WaitGroup
	var quotes service.QuoteSink

	if cfg.Kafka.Enabled {
		quoteTx := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.QuoteTopic)
		defer quoteTx.Close()

		feed := quotefeed.New(quoteTx, 1024, log)
		quotes = feed
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			feed.Run(ctx)
		}()
	}

	// ---------------- Engines, one per symbol ----------------

	books := service.NewBooks()
	wals := make([]*wal.WAL, 0, len(cfg.Symbols))

	for _, sym := range cfg.Symbols {
		b := book.New(book.Config{
			Symbol:   sym.Name,
			TickSize: sym.TickSize,
			MinPrice: sym.MinPrice,
			MaxPrice: sym.MaxPrice,
		})

		walDir := filepath.Join(cfg.WAL.Dir, sym.Name)
		lastSeq, err := service.Recover(b, walDir, cfg.Snapshot.Dir, log)
		if err != nil {
			log.Fatal().Err(err).Str("symbol", sym.Name).Msg("recovery failed")
		}

		w, err := wal.Open(wal.Config{
			Dir:         walDir,
			SegmentSize: cfg.WAL.SegmentSizeMB << 20,
			SegmentAge:  cfg.WAL.SegmentAge,
		})
		if err != nil {
			log.Fatal().Err(err).Str("symbol", sym.Name).Msg("wal open failed")
		}
		wals = append(wals, w)

		eng := service.NewEngine(b, sequence.New(lastSeq), w, out, quotes, log)
		books.Add(eng)

		writer := &snapshot.Writer{Dir: cfg.Snapshot.Dir}
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			eng.RunSnapshotJob(ctx, writer, cfg.Snapshot.Interval, cfg.Snapshot.EveryEvents)
		}()
	}

	// ---------------- Fill broadcaster ----------------

	if cfg.Kafka.Enabled {
		producer, err := broadcaster.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatal().Err(err).Msg("kafka producer init failed")
		}
		defer producer.Close()

		bc := broadcaster.New(out, producer, cfg.Kafka.FillTopic, cfg.Kafka.DrainEvery, log)
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			bc.Run(ctx)
		}()
	}

	log.Info().Int("symbols", len(cfg.Symbols)).Str("metrics", cfg.Metrics.Addr).Msg("engine running")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	jobs.Wait()
	for _, w := range wals {
		if err := w.Close(); err != nil {
			log.Error().Err(err).Msg("wal close failed")
		}
	}
}
