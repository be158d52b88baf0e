package main

import (
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/config"
	"github.com/souqhub/auction-backend/internal/db"
	"github.com/souqhub/auction-backend/internal/model"
)

// Seeds a handful of listings and open auctions for local development.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config load failed")
	}
	conn, err := db.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("db connect failed")
	}
	if err := conn.AutoMigrate(
		&model.Listing{}, &model.Auction{}, &model.Bid{}, &model.Deposit{},
		&model.EscrowTransaction{}, &model.Wallet{}, &model.Notification{}, &model.WatchlistEntry{},
	); err != nil {
		log.WithError(err).Fatal("auto migrate failed")
	}

	now := time.Now()
	reserve := int64(9_000_000)
	buyNow := int64(12_000_000)

	listings := []model.Listing{
		{Title: "2019 Kia Cerato, 60k km", SellerUID: "seed-seller-1", Vertical: "vehicles", Price: 8_000_000},
		{Title: "21k gold bracelet, 15g", SellerUID: "seed-seller-2", Vertical: "gold", Price: 900_000},
		{Title: "Apartment 120m2, Nasr City", SellerUID: "seed-seller-1", Vertical: "real_estate", Price: 250_000_000},
	}
	for i := range listings {
		if err := conn.Create(&listings[i]).Error; err != nil {
			log.WithError(err).Fatal("seed listing failed")
		}
	}

	auctions := []model.Auction{
		{
			ListingID:       listings[0].ID,
			SellerUID:       listings[0].SellerUID,
			Style:           model.AuctionStyleEnglish,
			StartingPrice:   8_000_000,
			ReservePrice:    &reserve,
			BuyNowPrice:     &buyNow,
			MinIncrement:    500_000,
			DepositRequired: true,
			DepositAmount:   1_000_000,
			StartAt:         now,
			EndAt:           now.Add(72 * time.Hour),
			CurrentPrice:    8_000_000,
			Status:          model.AuctionStatusActive,
		},
		{
			ListingID:     listings[1].ID,
			SellerUID:     listings[1].SellerUID,
			Style:         model.AuctionStyleSealed,
			StartingPrice: 900_000,
			MinIncrement:  50_000,
			StartAt:       now,
			EndAt:         now.Add(48 * time.Hour),
			CurrentPrice:  900_000,
			Status:        model.AuctionStatusActive,
		},
	}
	for i := range auctions {
		if err := conn.Create(&auctions[i]).Error; err != nil {
			log.WithError(err).Fatal("seed auction failed")
		}
	}

	log.WithFields(log.Fields{"listings": len(listings), "auctions": len(auctions)}).Info("seed complete")
}
