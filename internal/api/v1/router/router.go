package router

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/api/v1/handler"
	"github.com/ford-at-home/ecko/internal/auth"
	"github.com/ford-at-home/ecko/internal/config"
	"github.com/ford-at-home/ecko/internal/events"
	"github.com/ford-at-home/ecko/internal/middleware"
	"github.com/ford-at-home/ecko/internal/migrations"
	"github.com/ford-at-home/ecko/internal/repository"
	"github.com/ford-at-home/ecko/internal/service"
	"github.com/ford-at-home/ecko/internal/storage"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *sql.DB, func(), error) {
	// 1. Open DB connection (connection pooling)
	dsn := cfg.DBConnectionString
	// In a development environment, we want to ensure that SSL is disabled for
	// local testing. In production, the connection string should be provided
	// with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB connection")
		return nil, nil, nil, err
	}
	if err := db.Ping(); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		return nil, nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// 2. Apply schema migrations
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return nil, nil, nil, err
	}
	if err := goose.Up(db, "."); err != nil {
		logger.Error().Err(err).Msg("Failed to run migrations")
		return nil, nil, nil, err
	}

	// 3. Initialize S3 client
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		return nil, nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})
	store := storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3URL, logger)

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Initialize the analysis event publisher when configured
	var publisher events.Publisher
	var closePublisher func() error
	if cfg.AnalysisTopic != "" {
		p, err := events.NewPublisher(context.Background(), cfg.GCPProjectID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			return nil, nil, nil, err
		}
		publisher = p
		closePublisher = p.Close
	}

	// 6. Initialize repositories & services & handlers
	echoRepo := repository.NewEchoRepository(db)
	userRepo := repository.NewUserRepo(db)

	uploadTTL := time.Duration(cfg.UploadURLTTLSec) * time.Second
	echoSvc := service.NewEchoService(echoRepo, store, publisher, cfg.AnalysisTopic, uploadTTL, logger)
	userSvc := service.NewUserService(userRepo, echoRepo, store, logger)

	echoHandler := handler.NewEchoHandler(echoSvc, userSvc, validate, logger)
	userHandler := handler.NewUserHandler(userSvc, logger)
	metaHandler := handler.NewMetaHandler(db)

	// 7. Initialize middleware
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	authMiddleware := middleware.AuthMiddleware(verifier, logger)

	// 8. Create ServeMux router
	mux := http.NewServeMux()
	metaHandler.RegisterRoutes(mux)
	echoHandler.RegisterRoutes(mux, authMiddleware)
	userHandler.RegisterRoutes(mux, authMiddleware)

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	cleanup := func() {
		if closePublisher == nil {
			return
		}
		if err := closePublisher(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Pub/Sub publisher")
		}
	}

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), db, cleanup, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some
// S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists. This makes the client more
		// robust, especially for operations like presigned URLs that might
		// inspect the middleware stack.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
