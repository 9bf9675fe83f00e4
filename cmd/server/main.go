package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"studiobook/internal/api"
	"studiobook/internal/auth"
	"studiobook/internal/repository"
	"studiobook/internal/service"
)

func main() {
	godotenv.Load()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	bookingRepo := repository.NewBookingRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	staffAuthRepo := repository.NewStaffAuthRepository(db)

	notifier := service.NewSenderService()
	tokenSvc := service.NewCalendarTokenService(tokenRepo, service.NewGoogleOAuth(), "google")
	calendarSvc := service.NewCalendarService(tokenSvc, "google")
	availabilitySvc := service.NewAvailabilityService(resourceRepo, bookingRepo, calendarSvc)
	bookingSvc := service.NewBookingService(bookingRepo, resourceRepo, availabilitySvc, syncRepo, notifier)
	waitlistSvc := service.NewWaitlistService(waitlistRepo, notifier)
	bookingSvc.BindWaitlist(waitlistSvc)
	waitlistSvc.BindLedger(bookingSvc)
	staffAuthSvc := service.NewStaffAuthService(staffAuthRepo)
	jobSvc := service.NewJobService(bookingRepo, resourceRepo, syncRepo, waitlistSvc, calendarSvc)

	availabilityHandler := api.NewAvailabilityHandler(availabilitySvc)
	bookingHandler := api.NewBookingHandler(bookingSvc)
	waitlistHandler := api.NewWaitlistHandler(waitlistSvc)
	calendarHandler := api.NewCalendarHandler(tokenSvc)
	adminHandler := api.NewAdminHandler(bookingSvc, resourceRepo)
	staffAuthHandler := api.NewStaffAuthHandler(staffAuthSvc)

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/availability", availabilityHandler.CheckAvailability).Methods("POST")
	r.HandleFunc("/api/bookings", bookingHandler.CreateBooking).Methods("POST")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.GetBooking).Methods("GET")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.UpdateBooking).Methods("PUT")
	r.HandleFunc("/api/bookings/{code}", bookingHandler.CancelBooking).Methods("DELETE")
	r.HandleFunc("/api/waitlist", waitlistHandler.JoinWaitlist).Methods("POST")
	r.HandleFunc("/api/waitlist/{code}", waitlistHandler.GetEntry).Methods("GET")
	r.HandleFunc("/api/waitlist/{code}/book", waitlistHandler.BookFromWaitlist).Methods("POST")
	r.HandleFunc("/api/waitlist/{code}", waitlistHandler.CancelEntry).Methods("DELETE")
	r.HandleFunc("/api/calendar/connect", calendarHandler.Connect).Methods("GET")
	r.HandleFunc("/api/calendar/callback", calendarHandler.Callback).Methods("GET")
	r.HandleFunc("/api/staff/login", staffAuthHandler.Login).Methods("POST")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.StaffAuthMiddleware)
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods("GET")
	admin.HandleFunc("/bookings/{code}/confirm", adminHandler.ConfirmBooking).Methods("POST")
	admin.HandleFunc("/bookings/{code}/complete", adminHandler.CompleteBooking).Methods("POST")
	admin.HandleFunc("/bookings/{code}/no-show", adminHandler.MarkNoShow).Methods("POST")
	admin.HandleFunc("/resources", adminHandler.ListResources).Methods("GET")
	admin.HandleFunc("/resources/{id}", adminHandler.UpdateResourceSettings).Methods("PUT")
	admin.HandleFunc("/resources/{id}", adminHandler.DeactivateResource).Methods("DELETE")
	admin.HandleFunc("/staff", staffAuthHandler.CreateStaffUser).Methods("POST")

	c := cron.New()
	c.AddFunc("@every 1m", func() {
		if err := jobSvc.DrainCalendarSync(); err != nil {
			log.Printf("Cron Job error: %v", err)
		}
	})
	c.AddFunc("@every 5m", func() {
		if err := jobSvc.ExpireWaitlistEntries(); err != nil {
			log.Printf("Cron Job error: %v", err)
		}
	})
	c.AddFunc("@every 15m", func() {
		if err := jobSvc.CompleteElapsedBookings(); err != nil {
			log.Printf("Cron Job error: %v", err)
		}
	})
	c.Start()
	defer c.Stop()

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{os.Getenv("CORS_ALLOWED_ORIGIN")}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handlers.LoggingHandler(os.Stdout, cors(r))))
}
