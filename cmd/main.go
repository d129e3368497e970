package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ukydev/fleet-control/internal/assistant"
	"github.com/ukydev/fleet-control/internal/auth"
	"github.com/ukydev/fleet-control/internal/broker"
	"github.com/ukydev/fleet-control/internal/config"
	"github.com/ukydev/fleet-control/internal/db"
	"github.com/ukydev/fleet-control/internal/directions"
	"github.com/ukydev/fleet-control/internal/fleet"
	"github.com/ukydev/fleet-control/internal/handlers"
	"github.com/ukydev/fleet-control/internal/middleware"
	"github.com/ukydev/fleet-control/internal/models"
	"github.com/ukydev/fleet-control/internal/render"
)

// chat requests allowed per operator per minute
const chatRateLimit = 20

// app holds the wired service graph.
type app struct {
	store     *fleet.Store
	authSvc   *auth.Service
	operators *auth.Directory
	assistant *assistant.Orchestrator
	trips     handlers.TripLister
}

// deps are the optional external adapters. Nil fields are simply not wired.
type deps struct {
	archive   *db.TripArchive
	frameSink render.Sink
	llm       assistant.Responder
	rng       *rand.Rand
}

func newApp(cfg config.Config, d deps) (*app, error) {
	a := &app{authSvc: auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)}

	opts := []fleet.Option{fleet.WithRand(d.rng)}
	if d.archive != nil {
		opts = append(opts, fleet.WithTripRecorder(d.archive))
		a.trips = d.archive
	}
	if d.frameSink != nil {
		pending := render.PendingFunc(func(id string) ([]models.Location, bool) {
			return a.store.PendingDetour(id)
		})
		opts = append(opts, fleet.WithSnapshotPublisher(render.NewFramePublisher(d.frameSink, pending)))
	}
	a.store = fleet.New(cfg.Fleet, fleet.DefaultSeed(), opts...)
	a.assistant = assistant.New(a.store, d.llm)

	a.operators = auth.NewDirectory(a.authSvc)
	password := cfg.OperatorPassword
	if password == "" {
		generated, err := a.authSvc.GenerateRefreshToken()
		if err != nil {
			return nil, err
		}
		password = generated[:16]
		log.WithField("username", cfg.OperatorUsername).
			Warnf("OPERATOR_PASSWORD not set, generated password: %s", password)
	}
	if _, err := a.operators.Add(cfg.OperatorUsername, password, cfg.OperatorRole); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) routes() http.Handler {
	authMW := middleware.NewAuthMiddleware(a.authSvc)
	limiter := middleware.NewRateLimitMiddleware()
	perm := func(p string, h http.HandlerFunc) http.Handler {
		return authMW.RequirePermission(p)(h)
	}

	authH := handlers.NewAuthHandler(a.authSvc, a.operators)
	fleetH := handlers.NewFleetHandler(a.store)
	detourH := handlers.NewDetourHandler(a.store)
	chatH := handlers.NewChatHandler(a.assistant, a.store)
	tripH := handlers.NewTripHandler(a.trips)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/auth/login", authH.Login)
	mux.HandleFunc("GET /api/auth/me", authH.Me)

	mux.Handle("GET /api/state", perm(models.PermViewFleet, fleetH.State))
	mux.Handle("GET /api/frame", perm(models.PermViewFleet, fleetH.Frame))
	mux.Handle("GET /api/traffic", perm(models.PermViewFleet, fleetH.Traffic))
	mux.Handle("GET /api/events", perm(models.PermViewFleet, fleetH.Events))
	mux.Handle("POST /api/routes/{id}/toggle", perm(models.PermViewFleet, fleetH.ToggleRoute))
	mux.Handle("POST /api/focus", perm(models.PermViewFleet, fleetH.Focus))
	mux.Handle("GET /api/trips", perm(models.PermViewFleet, tripH.List))

	mux.Handle("POST /api/dispatch", perm(models.PermDispatch, fleetH.Dispatch))
	mux.Handle("POST /api/onboarding/complete", perm(models.PermDispatch, fleetH.CompleteOnboarding))

	mux.Handle("GET /api/detours/{id}", perm(models.PermManageDetours, detourH.Get))
	mux.Handle("POST /api/detours/{id}/propose", perm(models.PermManageDetours, detourH.Propose))
	mux.Handle("POST /api/detours/{id}/confirm", perm(models.PermManageDetours, detourH.Confirm))
	mux.Handle("POST /api/detours/{id}/cancel", perm(models.PermManageDetours, detourH.Cancel))

	mux.Handle("GET /api/chat", perm(models.PermViewFleet, chatH.History))
	mux.Handle("POST /api/chat", limiter.RateLimit(chatRateLimit, time.Minute)(perm(models.PermChat, chatH.Send)))

	return middleware.Logging(authMW.Authenticate(mux))
}

func main() {
	cfg := config.Load()
	cfg.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := deps{rng: rand.New(rand.NewSource(seed))}
	gemini, err := assistant.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiURL)
	if err != nil {
		log.WithError(err).Warn("Gemini client unavailable, assistant will answer only local queries")
		gemini, _ = assistant.NewGeminiClient(ctx, "", cfg.GeminiModel, "")
	} else if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, assistant will answer only local queries")
	}
	d.llm = gemini

	var mongoClient *mongo.Client
	if cfg.MongoURI != "" {
		client, err := db.ConnectMongo(ctx, cfg.MongoURI)
		if err != nil {
			log.WithError(err).Warn("MongoDB unavailable, trip archive disabled")
		} else {
			mongoClient = client
			coll := client.Database(cfg.MongoDB).Collection("trips")
			d.archive = db.NewTripArchive(&db.MongoCollection{Collection: coll})
			log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
		}
	}

	var frames *broker.FramePublisher
	if cfg.MQTTBroker != "" {
		pub, err := broker.Connect(cfg.MQTTBroker, "fleet-control-"+cfg.Port, cfg.MQTTTopic)
		if err != nil {
			log.WithError(err).Warn("MQTT unavailable, frame publishing disabled")
		} else {
			frames = pub
			d.frameSink = pub
		}
	}

	a, err := newApp(cfg, d)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialise service")
	}

	if cfg.FetchDirections {
		go func() {
			fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			directions.Refresh(fetchCtx, directions.NewOSRMClient(cfg.DirectionsURL), a.store)
		}()
	}

	a.store.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// event streams end when the signal context does
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	a.store.Stop()
	if frames != nil {
		frames.Close()
	}
	if mongoClient != nil {
		_ = mongoClient.Disconnect(shutdownCtx)
	}
}
