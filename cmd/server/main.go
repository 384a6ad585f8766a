package main

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/railway-booking/internal/adapter/handler"
	"github.com/rl1809/railway-booking/internal/adapter/identity"
	"github.com/rl1809/railway-booking/internal/adapter/storage"
	"github.com/rl1809/railway-booking/internal/config"
	"github.com/rl1809/railway-booking/internal/core/service"
	"github.com/rl1809/railway-booking/internal/port"
)

const serviceName = "railway-booking"

func main() {
	configPath := flag.String("config", os.Getenv("RAILWAY_CONFIG"), "path to the YAML or JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := log.NewFilter(
		log.With(log.NewStdLogger(os.Stdout),
			"ts", log.DefaultTimestamp,
			"caller", log.DefaultCaller,
			"service.name", serviceName,
		),
		log.FilterLevel(log.ParseLevel(cfg.LogLevel)),
	)
	helper := log.NewHelper(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN())
	if err != nil {
		helper.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime())

	if err := db.PingContext(ctx); err != nil {
		helper.Fatalf("failed to ping mysql: %v", err)
	}
	helper.Infow("msg", "connected to mysql", "addr", cfg.MySQL.Addr)

	// Redis only backs the sold-out marker; without it every request reaches MySQL.
	var cache port.CacheRepository
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			helper.Fatalf("failed to connect redis: %v", err)
		}
		cache = storage.NewRedisAdapter(rdb)
		helper.Infow("msg", "connected to redis", "addr", cfg.Redis.Addr)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)

	reservationService := service.NewReservationService(mysqlAdapter, cache, cfg.Reservation.UnitTimeout(), logger)
	bookingService := service.NewBookingQueryService(mysqlAdapter, logger)
	trainService := service.NewTrainService(mysqlAdapter, logger)

	authz, err := handler.NewAuthorizer(ctx)
	if err != nil {
		helper.Fatalf("failed to prepare authorization policy: %v", err)
	}

	// Initialize gRPC server
	grpcOpts, err := identity.ServerOptions(cfg.SPIFFE)
	if err != nil {
		helper.Fatalf("failed to load spiffe identity: %v", err)
	}
	grpcOpts = append(grpcOpts, grpc.UnaryInterceptor(handler.UnaryLogger(logger)))
	grpcServer := grpc.NewServer(grpcOpts...)
	handler.RegisterReservationServer(grpcServer, handler.NewGRPCHandler(reservationService, bookingService))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		helper.Fatalf("failed to listen: %v", err)
	}

	go func() {
		helper.Infow("msg", "gRPC server listening", "addr", cfg.GRPCAddr, "mtls", cfg.SPIFFE.Enabled())
		if err := grpcServer.Serve(lis); err != nil {
			helper.Errorw("msg", "gRPC server error", "err", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(reservationService, bookingService, trainService, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHTTPServerHandler(httpHandler, authz, cfg.AdminAPIKey, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		helper.Infow("msg", "HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			helper.Errorw("msg", "HTTP server error", "err", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	helper.Info("shutting down...")
	healthServer.Shutdown()

	// In-flight reservations finish their unit of work before the pool closes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Reservation.UnitTimeout()+5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		helper.Warnw("msg", "HTTP shutdown incomplete", "err", err)
	}
	helper.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	helper.Info("gRPC server stopped")

	if rdb != nil {
		rdb.Close()
	}
	db.Close()
	helper.Info("connections closed")
}
