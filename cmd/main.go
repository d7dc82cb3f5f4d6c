package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/studio-booking/internal/auth"
	"github.com/Leganyst/studio-booking/internal/calendar"
	"github.com/Leganyst/studio-booking/internal/config"
	"github.com/Leganyst/studio-booking/internal/db"
	"github.com/Leganyst/studio-booking/internal/events"
	"github.com/Leganyst/studio-booking/internal/logger"
	"github.com/Leganyst/studio-booking/internal/model"
	"github.com/Leganyst/studio-booking/internal/obs"
	"github.com/Leganyst/studio-booking/internal/receipt"
	"github.com/Leganyst/studio-booking/internal/repository"
	"github.com/Leganyst/studio-booking/internal/service"
	"github.com/Leganyst/studio-booking/internal/transport/grpcapi"
	"github.com/Leganyst/studio-booking/internal/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	seed := flag.Bool("seed", false, "insert demo rooms when the rooms table is empty")
	issueToken := flag.String("issue-admin-token", "", "print an admin JWT for the given subject and exit")
	flag.Parse()

	if err := run(*seed, *issueToken); err != nil {
		logrus.WithError(err).Fatal("studio-booking stopped")
	}
}

func run(seed bool, issueToken string) error {
	// 1. Конфиг приложения и логгер.
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	baseLog := logger.New(appCfg.LogLevel, appCfg.LogFormat)
	log := logger.Component(baseLog, "main")

	authn := auth.NewAuthenticator(appCfg.JWTSecret)
	if issueToken != "" {
		tok, err := authn.CreateToken(issueToken, auth.RoleAdmin, 24*time.Hour)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(tok)
		return nil
	}
	if !authn.Enabled() {
		log.Warn("JWT_SECRET is empty: admin routes will reject every request")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Трейсинг (no-op, если endpoint не задан).
	shutdownTracer, err := obs.InitTracer(ctx, "studio-booking", appCfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracer(sctx)
	}()

	// 3. БД и миграции.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		return fmt.Errorf("load db config: %w", err)
	}
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("sql DB: %w", err)
	}
	defer sqlDB.Close()

	repos := service.NewGormRepositories(gormDB)

	if seed {
		n, err := seedRooms(ctx, repos.Rooms)
		if err != nil {
			return fmt.Errorf("seed rooms: %w", err)
		}
		log.WithField("count", n).Info("rooms seeded")
	}

	// 4. Квитанции, события, часы.
	zone, err := calendar.LoadZone(appCfg.BusinessTimeZone)
	if err != nil {
		return fmt.Errorf("load zone: %w", err)
	}
	store, err := receipt.NewFSStore(appCfg.ReceiptsDir)
	if err != nil {
		return fmt.Errorf("receipts store: %w", err)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if appCfg.RabbitURL != "" {
		p, err := events.NewAMQPPublisher(appCfg.RabbitURL, appCfg.BookingExchange)
		if err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()

	clock := calendar.SystemClock{}

	// 5. Сервисы ядра.
	receipts := service.NewReceiptService(
		repos,
		receipt.NewPDFRenderer(),
		store,
		clock,
		zone,
		logger.Component(baseLog, "receipts"),
	)
	bookingSvc := service.NewBookingService(
		gormDB,
		repos,
		receipts,
		publisher,
		clock,
		zone,
		service.BookingConfigFrom(appCfg),
		logger.Component(baseLog, "booking"),
	)
	sweeper := service.NewSweeper(bookingSvc, clock, appCfg.SweepInterval, logger.Component(baseLog, "sweeper"))

	// 6. gRPC и HTTP.
	grpcServer := grpcapi.NewGRPCServer(
		grpcapi.NewServer(bookingSvc, sweeper, zone),
		authn,
		logger.Component(baseLog, "grpc"),
	)
	reflection.Register(grpcServer)

	httpServer := &http.Server{
		Addr: appCfg.HTTPAddr,
		Handler: httpapi.NewRouter(
			httpapi.NewHandler(bookingSvc, sweeper, zone, logger.Component(baseLog, "http")),
			authn,
			logger.Component(baseLog, "http"),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", appCfg.GRPCAddr, err)
	}

	// 7. Всё крутится до сигнала; первая ошибка гасит остальное.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("gRPC server listening on %s", appCfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Infof("HTTP server listening on %s", appCfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	// 8. Грейсфул-шатдаун.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	log.Info("stopped")
	return nil
}

var demoRooms = []model.Room{
	{Name: "Studio A", Category: "band", PricePerHour: 100000},
	{Name: "Studio B", Category: "band", PricePerHour: 150000},
	{Name: "Vocal Booth", Category: "recording", PricePerHour: 75000},
}

// seedRooms заполняет пустую таблицу комнат демо-данными.
func seedRooms(ctx context.Context, rooms repository.RoomRepository) (int, error) {
	existing, err := rooms.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range demoRooms {
		room := demoRooms[i]
		if err := rooms.Create(ctx, &room); err != nil {
			return i, err
		}
	}
	return len(demoRooms), nil
}
