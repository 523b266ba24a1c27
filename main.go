package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
)

func main() {
	cfg, err := LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("Error loading configuration:", err)
	}
	jwtSecret = []byte(cfg.JWTSecret)
	tokenTTL = cfg.TokenDuration

	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Cannot reach the database:", err)
	}

	matchStore := NewMatchStore(db)
	profiles := NewProfileSource(db)
	matchSvc := NewMatchService(matchStore, profiles, cfg.MatchThreshold)

	registry := NewRoomRegistry(db, cfg.PreviewLen)
	messages := NewMessageStore(db, cfg.MaxMessageLen)
	broker := NewMessageBroker(NewHub(), registry, messages)

	r := mux.NewRouter()
	r.Use(withUserLoader(db))

	// Auth collaborator
	r.HandleFunc("/register", registerHandler(db)).Methods(http.MethodPost)
	r.HandleFunc("/login", loginHandler(db)).Methods(http.MethodPost)

	// Onboarding collaborator
	r.HandleFunc("/onboarding/questions", quizQuestionsHandler()).Methods(http.MethodGet)
	r.HandleFunc("/onboarding", submitOnboardingHandler(db)).Methods(http.MethodPost)

	// Matching
	r.HandleFunc("/matches/{userId}", matchesHandler(matchSvc)).Methods(http.MethodGet)
	r.HandleFunc("/matches/{userId}/recompute", recomputeMatchesHandler(matchSvc)).Methods(http.MethodPost)

	// Chat rooms & history
	r.HandleFunc("/rooms", createRoomHandler(registry, db)).Methods(http.MethodPost)
	r.HandleFunc("/rooms", listRoomsHandler(registry, db)).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{roomId}/messages", roomMessagesHandler(registry, messages, cfg)).Methods(http.MethodGet)

	// Realtime chat endpoint
	r.HandleFunc("/ws", wsHandler(broker)).Methods(http.MethodGet)

	// Health check endpoint for Docker
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// CORS wraps the router itself so preflight requests are answered even
	// for method/route combinations mux would otherwise reject.
	handler := loggingMiddleware(recoveryMiddleware(withCORS(cfg.ClientOrigin)(r)))

	log.Printf("Starting ConnectAI backend on %s...", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal(err)
	}
}
