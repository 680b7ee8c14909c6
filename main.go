package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "marketplace/internal/config"
	router "marketplace/internal/http"
	"marketplace/internal/http/handlers"
	"marketplace/internal/repositories"
	"marketplace/internal/services"

	"github.com/gin-gonic/gin"
)

func main() {
	env := intconfig.LoadEnv()
	env.MustValidate()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	intconfig.ConnectDB(env)
	defer intconfig.CloseDB()

	aggregator := services.NewAggregatorClient(env)
	handlers.Configure(env, aggregator)

	// Router (Gin engine)
	r := router.NewRouter(env)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := &services.Scheduler{
		Expiry: services.ExpiryService{
			BookingRepo: repositories.BookingRepository{},
			TourRepo:    repositories.TourBookingRepository{},
			ArchiveRepo: repositories.ArchiveRepository{},
			Timeout:     time.Duration(env.BookingExpiryMinutes) * time.Minute,
		},
		Interval: env.ExpirySweepInterval,
	}
	go sched.Start(rootCtx)

	go func() {
		log.Printf("Server berjalan di http://localhost%s", env.AppAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Gagal menjalankan server: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("Mematikan server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown server gagal: %v", err)
	}

	log.Println("Server berhenti dengan aman.")
}
