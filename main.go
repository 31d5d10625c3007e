package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goimomi/activity"
	"goimomi/app"
	"goimomi/config"
	"goimomi/db"
	"goimomi/filemgr"
	"goimomi/middleware"
	"goimomi/mq"
	"goimomi/ratelim"
	"goimomi/rdx"
	"goimomi/routes"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

func main() {
	cfg := config.Load()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gdb := db.Init(cfg)

	var events activity.Store = activity.NewMemoryLog(500)
	mongoClient, err := db.ConnectMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if mongoClient != nil {
		events = activity.NewMongoLog(mongoClient, cfg.MongoDB)
		log.Println("📒 Activity log stored in MongoDB")
	} else {
		log.Println("📒 MONGO_URI not set; activity log kept in memory")
	}

	redisConn, err := rdx.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if redisConn == nil {
		log.Println("⚠️ REDIS_URL not set; reference cache and event fan-out disabled")
	}

	hub := activity.NewHub()
	go hub.Run()
	recorder := activity.NewRecorder(events, mq.NewPublisher(redisConn, mq.ActivityChannel), hub)
	go recorder.Relay(ctx)

	a := &app.App{
		Cfg:      cfg,
		DB:       gdb,
		Files:    filemgr.NewStore(cfg.UploadRoot, cfg.MaxUploadBytes()),
		Cache:    rdx.NewCache(redisConn, cfg.ReferenceTTL),
		Activity: recorder,
		Auth:     middleware.NewAuth(cfg.JWTSecret, cfg.AccessTokenTTL),
	}

	// 10 per minute with a burst of 5 for login and public submissions
	rateLimiter := ratelim.NewRateLimiter(10, 5)
	go rateLimiter.Cleanup(ctx.Done())

	router := httprouter.New()
	routes.RoutesWrapper(router, a, rateLimiter, hub)

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Logging(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Closing activity stream...")
		stop()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Graceful shutdown failed: %v", err)
	}

	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			log.Printf("mongo disconnect: %v", err)
		}
	}
	if redisConn != nil {
		redisConn.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("✅ Server stopped cleanly")
}
