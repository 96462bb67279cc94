package main

import (
	"context"
	"log"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"jiranbackend/internal/adapter/api"
	"jiranbackend/internal/adapter/api/handler"
	apimiddleware "jiranbackend/internal/adapter/api/middleware"
	"jiranbackend/internal/adapter/api/router"
	"jiranbackend/internal/adapter/repository"
	"jiranbackend/internal/domain/service"
	"jiranbackend/internal/infrastructure/firebase"
	"jiranbackend/internal/infrastructure/push"
	"jiranbackend/internal/infrastructure/ratelimit"
	"jiranbackend/internal/infrastructure/realtime"
	"jiranbackend/internal/infrastructure/store"
	"jiranbackend/internal/usecase"
	"jiranbackend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var opt option.ClientOption
	serviceAccountJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON")
	if serviceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(serviceAccountJSON))
	} else {
		serviceAccountPath := os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH")
		if serviceAccountPath == "" {
			serviceAccountPath = "./service-account.json"
		}
		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}
		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	messagingClient, err := firebaseApp.Messaging(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Messaging: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	sharedStore := store.NewRedisStore(redisClient)

	userRepo := repository.NewFirestoreUserRepository(firestoreClient)
	productRepo := repository.NewFirestoreProductRepository(firestoreClient)
	conversationRepo := repository.NewFirestoreConversationRepository(firestoreClient)
	offerRepo := repository.NewFirestoreOfferRepository(firestoreClient)
	transactionRepo := repository.NewFirestoreTransactionRepository(firestoreClient)
	streamRepo := repository.NewFirestoreStreamRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)
	pushDispatcher := push.NewFCMDispatcher(messagingClient, sharedStore)

	registry := realtime.NewRegistry(sharedStore, firebaseAuthClient)
	hub := realtime.NewHub(registry, sharedStore, pushDispatcher)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine(ctx)

	tradeService := service.NewTradeService(productRepo, transactionRepo)

	messagingUsecase := usecase.NewMessagingUsecase(
		conversationRepo, userRepo, productRepo, hub, sharedStore, rateLimiter, cfg.TypingTTL)
	registry.SetPresenceNotifier(messagingUsecase)

	offerUsecase := usecase.NewOfferUsecase(
		offerRepo, productRepo, messagingUsecase, tradeService, hub, sharedStore,
		rateLimiter, cfg.OfferTTL, cfg.OfferFeedSize)

	engagementUsecase := usecase.NewEngagementUsecase(
		streamRepo, hub, sharedStore, cfg.StreamChatSize, cfg.ChatRateLimit, cfg.ChatRateWindow)

	// Background jobs
	registry.StartSweeper(ctx, cfg.RegistrySweepInterval, cfg.HeartbeatTimeout)
	offerUsecase.StartSweeper(ctx, cfg.OfferSweepInterval)
	engagementUsecase.StartStatsBroadcaster(ctx, cfg.ViewerBroadcastEvery)

	e := echo.New()
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(firebaseAuthClient)

	healthHandler := handler.NewHealthHandler(sharedStore)
	conversationHandler := handler.NewConversationHandler(messagingUsecase)
	offerHandler := handler.NewOfferHandler(offerUsecase)
	streamHandler := handler.NewStreamHandler(engagementUsecase)
	wsHandler := handler.NewWebSocketHandler(registry, hub, messagingUsecase, engagementUsecase)

	router.Setup(e, authMiddleware, healthHandler, conversationHandler, offerHandler, streamHandler, wsHandler)

	log.Printf("Starting server on port %s...", cfg.ServerPort)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
