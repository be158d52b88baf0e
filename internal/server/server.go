package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/souqhub/auction-backend/internal/config"
	"github.com/souqhub/auction-backend/internal/gateway"
	"github.com/souqhub/auction-backend/internal/handler"
	"github.com/souqhub/auction-backend/internal/identity"
	appmw "github.com/souqhub/auction-backend/internal/middleware"
	"github.com/souqhub/auction-backend/internal/notify"
	"github.com/souqhub/auction-backend/internal/repository"
	"github.com/souqhub/auction-backend/internal/scheduler"
	"github.com/souqhub/auction-backend/internal/service"
	"gorm.io/gorm"
)

type Server struct {
	e     *echo.Echo
	repos []interface{ SetDB(*gorm.DB) }
	sched *scheduler.Scheduler
	sha   string
	build string
}

func New(db *gorm.DB, cfg *config.Config, sha, buildTime string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			low := strings.ToLower(origin)
			if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
				strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
				return true, nil
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false, nil
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return false, nil
			}
			host := u.Hostname()
			if strings.HasSuffix(host, "vercel.app") {
				return true, nil
			}
			return false, nil
		},
	}))

	auctionRepo := repository.NewAuctionRepository(db)
	bidRepo := repository.NewBidRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	escrowRepo := repository.NewEscrowRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	watchRepo := repository.NewWatchlistRepository(db)
	listingRepo := repository.NewListingRepository(db)

	dbAware := []interface{ SetDB(*gorm.DB) }{
		auctionRepo, bidRepo, depositRepo, escrowRepo,
		walletRepo, notificationRepo, watchRepo, listingRepo,
	}

	var gw gateway.Gateway
	if cfg.GatewayURL != "" {
		gw = gateway.NewHTTPClient(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayTimeout)
	} else {
		log.Warn("PAYMENT_GATEWAY_URL not set; using sandbox gateway")
		gw = gateway.NewSandbox()
	}

	authMw, err := appmw.NewAuthMiddleware(context.Background())
	if err != nil {
		log.WithError(err).Warn("firebase auth unavailable; running without auth")
		authMw = nil
	}

	var channels []notify.Channel
	if authMw != nil {
		if push, err := notify.NewPush(context.Background(), authMw.App()); err != nil {
			log.WithError(err).Warn("push channel unavailable")
		} else {
			channels = append(channels, push)
		}
	}
	if cfg.SMTPAddr != "" {
		directory := identity.NewDirectory(db)
		channels = append(channels, notify.NewEmail(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword, directory))
		dbAware = append(dbAware, directory)
	}

	notifySvc := service.NewNotificationService(notificationRepo, watchRepo, channels...)
	settlementSvc := service.NewSettlementService(escrowRepo, walletRepo, notifySvc, cfg.InspectionWindow)
	depositSvc := service.NewDepositService(depositRepo, auctionRepo, walletRepo, gw, settlementSvc, notifySvc)
	biddingSvc := service.NewBiddingService(auctionRepo, bidRepo, depositRepo, listingRepo, depositSvc, notifySvc)

	auctionHandler := handler.NewAuctionHandler(biddingSvc, watchRepo)
	depositHandler := handler.NewDepositHandler(depositSvc)
	escrowHandler := handler.NewEscrowHandler(settlementSvc)
	notificationHandler := handler.NewNotificationHandler(notifySvc)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    sha,
			"build_time": buildTime,
		})
	})

	api := e.Group("/api")
	register := func(method, path string, h echo.HandlerFunc, protected bool) {
		if protected && authMw != nil {
			api.Add(method, path, h, authMw.RequireAuth)
			return
		}
		api.Add(method, path, h)
	}

	register(http.MethodGet, "/auctions", auctionHandler.List, false)
	register(http.MethodGet, "/auctions/:id", auctionHandler.Get, false)
	register(http.MethodPost, "/auctions", auctionHandler.Create, true)
	register(http.MethodPost, "/auctions/:id/bids", auctionHandler.PlaceBid, true)
	register(http.MethodPost, "/auctions/:id/buy-now", auctionHandler.BuyNow, true)
	register(http.MethodPost, "/auctions/:id/watch", auctionHandler.Watch, true)
	register(http.MethodDelete, "/auctions/:id/watch", auctionHandler.Unwatch, true)

	register(http.MethodPost, "/auctions/:id/deposit", depositHandler.Collect, true)
	register(http.MethodPost, "/auctions/:id/settle", depositHandler.Settle, true)
	register(http.MethodPost, "/deposits/:id/refund", depositHandler.Refund, true)
	register(http.MethodPost, "/payments/confirm", depositHandler.Confirm, false)

	register(http.MethodGet, "/escrow", escrowHandler.ListMine, true)
	register(http.MethodGet, "/escrow/:id", escrowHandler.Get, true)
	register(http.MethodPost, "/escrow/:id/ship", escrowHandler.Ship, true)
	register(http.MethodPost, "/escrow/:id/deliver", escrowHandler.Deliver, true)
	register(http.MethodPost, "/escrow/:id/release", escrowHandler.Release, true)
	register(http.MethodPost, "/escrow/:id/dispute", escrowHandler.Dispute, true)
	register(http.MethodPost, "/escrow/:id/resolve", escrowHandler.Resolve, true)
	register(http.MethodPost, "/escrow/:id/cancel", escrowHandler.Cancel, true)
	register(http.MethodPost, "/escrow/:id/confirm-payment", escrowHandler.ConfirmPayment, false)

	register(http.MethodGet, "/notifications", notificationHandler.List, true)
	register(http.MethodGet, "/notifications/unread-count", notificationHandler.UnreadCount, true)
	register(http.MethodPost, "/notifications/:id/read", notificationHandler.MarkRead, true)
	register(http.MethodPost, "/notifications/read-all", notificationHandler.MarkAllRead, true)
	register(http.MethodDelete, "/notifications/:id", notificationHandler.Delete, true)
	register(http.MethodDelete, "/notifications", notificationHandler.ClearAll, true)

	sched := scheduler.New(biddingSvc, settlementSvc, cfg.SchedulerInterval, cfg.EndingSoonWindow)

	return &Server{
		e:     e,
		repos: dbAware,
		sched: sched,
		sha:   sha,
		build: buildTime,
	}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// SetDB injects the database into every db-backed collaborator once the
// background connect finishes.
func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
}

// Scheduler returns the background trigger loop for main to run.
func (s *Server) Scheduler() *scheduler.Scheduler {
	return s.sched
}
