package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-compliance/internal/auth"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/handlers"
	"github.com/ukydev/fleet-compliance/internal/metrics"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/notify"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func main() {
	_ = godotenv.Load()
	log.SetFormatter(&log.JSONFormatter{})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.Info("Connected to MongoDB")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "compliance"
	}
	database := client.Database(dbName)
	documentCollection := &db.MongoDocumentCollection{Collection: database.Collection("documents")}
	userCollection := &db.MongoUserCollection{Collection: database.Collection("users")}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	m := metrics.New()

	authHandler := handlers.NewAuthHandler(authService, userCollection)
	documentHandler := handlers.NewDocumentHandler(documentCollection, m)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authHandler.GetProfile(w, r)
		case http.MethodPut:
			authHandler.UpdateProfile(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/auth/change-password", authHandler.ChangePassword)
	mux.HandleFunc("/api/documents", documentHandler.HandleDocuments)
	mux.HandleFunc("/api/documents/", documentHandler.HandleDocument)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)

	handler := rateLimitMiddleware.RateLimit(100, 60)(authMiddleware.Authenticate(mux))

	if os.Getenv("MQTT_BROKER") != "" {
		publisher, err := notify.ConnectMQTT()
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to MQTT broker")
		}
		interval := 24 * time.Hour
		if v := os.Getenv("REMINDER_INTERVAL"); v != "" {
			if parsed, err := time.ParseDuration(v); err == nil {
				interval = parsed
			}
		}
		reminder := notify.NewReminder(documentCollection, publisher, os.Getenv("MQTT_TOPIC"), interval, m)
		go reminder.Run(context.Background())
		log.WithField("interval", interval.String()).Info("Expiry reminder scanner started")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
