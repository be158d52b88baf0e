package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/config"
	"github.com/souqhub/auction-backend/internal/db"
	"github.com/souqhub/auction-backend/internal/model"
	"github.com/souqhub/auction-backend/internal/server"
)

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}

	srv := server.New(nil, cfg, os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)

	go func() {
		log.WithField("addr", addr).Info("starting server")
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			log.WithError(err).Error("db connect failed")
			return
		}
		srv.SetDB(conn)
		if err := conn.AutoMigrate(
			&model.Listing{},
			&model.Auction{},
			&model.Bid{},
			&model.Deposit{},
			&model.EscrowTransaction{},
			&model.Wallet{},
			&model.Notification{},
			&model.WatchlistEntry{},
		); err != nil {
			log.WithError(err).Error("auto migrate failed")
		}
		go srv.Scheduler().Run(context.Background())
	}()

	if err := <-errCh; err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
