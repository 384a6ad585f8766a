package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/railway-booking/internal/adapter/storage"
	"github.com/rl1809/railway-booking/internal/config"
	"github.com/rl1809/railway-booking/internal/core/domain"
	"github.com/rl1809/railway-booking/internal/core/service"
)

func main() {
	configPath := flag.String("config", os.Getenv("RAILWAY_CONFIG"), "path to the YAML or JSON config file")
	capacity := flag.Int("seats", 20, "seats on the test train")
	totalRequests := flag.Int("requests", 50, "concurrent reservation requests")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx := context.Background()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN())
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	mysqlAdapter := storage.NewMySQLAdapter(db)
	trainID, err := mysqlAdapter.CreateTrain(ctx, domain.NewTrain{
		Name:        fmt.Sprintf("stress-%d", time.Now().Unix()),
		Source:      "Chennai",
		Destination: "Kolkata",
		TotalSeats:  *capacity,
	})
	if err != nil {
		log.Fatalf("failed to create train: %v", err)
	}

	logger := log.NewFilter(log.NewStdLogger(os.Stderr), log.FilterLevel(log.LevelWarn))
	reservationService := service.NewReservationService(mysqlAdapter, nil, cfg.Reservation.UnitTimeout(), logger)

	// Counters
	var confirmed, soldOut, systemError atomic.Int32
	var mu sync.Mutex
	var seats []int

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()

			outcome := reservationService.ReserveSeat(ctx, userID, trainID)
			switch outcome.Status {
			case domain.OutcomeConfirmed:
				confirmed.Add(1)
				mu.Lock()
				seats = append(seats, outcome.SeatNo)
				mu.Unlock()
			case domain.OutcomeSoldOut:
				soldOut.Add(1)
			default:
				systemError.Add(1)
			}
		}(int64(i + 1))
	}

	wg.Wait()
	elapsed := time.Since(start)

	wantConfirmed := min(*capacity, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Train ID:         %d\n", trainID)
	fmt.Printf("Seats:            %d\n", *capacity)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Confirmed:        %d\n", confirmed.Load())
	fmt.Printf("SoldOut:          %d\n", soldOut.Load())
	fmt.Printf("SystemError:      %d\n", systemError.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if systemError.Load() > 0 {
		fmt.Printf("WARN: %d requests ended in SystemError; raise the lock wait timeout for this load\n", systemError.Load())
	}
	if int(confirmed.Load()) == wantConfirmed || (systemError.Load() > 0 && int(confirmed.Load()) < wantConfirmed) {
		fmt.Printf("PASS: %d confirmed for %d seats\n", confirmed.Load(), *capacity)
	} else {
		fmt.Printf("FAIL: expected %d confirmed, got %d\n", wantConfirmed, confirmed.Load())
		failed = true
	}

	// Every confirmed seat number is distinct and within 1..seats.
	sort.Ints(seats)
	for i, n := range seats {
		if n < 1 || n > *capacity || (i > 0 && seats[i-1] == n) {
			fmt.Printf("FAIL: invalid seat assignment %v\n", seats)
			failed = true
			break
		}
	}

	var available int
	if err := db.QueryRowContext(ctx, `SELECT available_seats FROM seats WHERE train_id = ?`, trainID).Scan(&available); err != nil {
		log.Fatalf("failed to read seat counter: %v", err)
	}
	fmt.Printf("Final Counter:    %d\n", available)
	if available == *capacity-int(confirmed.Load()) {
		fmt.Println("PASS: counter matches confirmed bookings")
	} else {
		fmt.Printf("FAIL: expected counter %d, got %d\n", *capacity-int(confirmed.Load()), available)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}
