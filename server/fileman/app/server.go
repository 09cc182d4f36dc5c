package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	commonauth "filevault/server/common/auth"
	"filevault/server/common/infra/cache"
	"filevault/server/common/infra/db"
	"filevault/server/common/infra/mq"
	"filevault/server/common/infra/object"
	commonlog "filevault/server/common/log"
	fileapi "filevault/server/fileman/api"
	"filevault/server/fileman/realtime"
	"filevault/server/fileman/repository"
	"filevault/server/fileman/service"
)

type Server struct {
	HTTPServer *http.Server
	Reconciler *service.Reconciler

	hub       *realtime.Hub
	pool      *pgxpool.Pool
	redis     *redis.Client
	mqConn    *amqp.Connection
	publisher *service.AMQPPublisher
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cfg.PostgresMigrate {
		if err := db.Migrate(cfg.PostgresDSN); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres: %w", err)
	}

	minioClient, err := object.NewClient(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize minio: %w", err)
	}
	if err := object.EnsureBucket(ctx, minioClient, cfg.MinioBucket); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure minio bucket: %w", err)
	}
	objects := object.NewMinIOStore(minioClient, cfg.MinioBucket, cfg.PublicBaseURL)

	s := &Server{hub: realtime.NewHub(), pool: pool}

	var ledger service.OrphanLedger
	if cfg.RedisAddr != "" {
		client := cache.NewClient(cfg.RedisAddr)
		if err := cache.Ping(ctx, client); err != nil {
			commonlog.Warnf("event=fileman_init component=redis status=unavailable addr=%s error=%v", cfg.RedisAddr, err)
			_ = client.Close()
		} else {
			s.redis = client
			s.hub.UseRedis(client)
			ledger = service.NewRedisOrphanLedger(client)
		}
	}
	if ledger == nil {
		ledger = service.NewMemoryOrphanLedger()
	}

	events := service.Publishers{s.hub}
	if cfg.UseMQ {
		conn, err := mq.NewConnection(cfg.MQURL)
		if err != nil {
			commonlog.Warnf("event=fileman_init component=amqp status=unavailable error=%v", err)
		} else if publisher, err := service.NewAMQPPublisher(conn); err != nil {
			commonlog.Warnf("event=fileman_init component=amqp status=channel_failed error=%v", err)
			_ = conn.Close()
		} else {
			s.mqConn = conn
			s.publisher = publisher
			events = append(events, publisher)
		}
	}

	users := repository.NewUserRepository(pool)
	fileSvc := service.NewFileService(objects, repository.NewFileRepository(pool), users, events, ledger, service.Options{
		ObjectPrefix:   cfg.ObjectPrefix,
		MaxUploadBytes: int64(cfg.MaxUploadMB) * 1024 * 1024,
		QuotaBytes:     cfg.QuotaBytes,
		Thumbnails:     cfg.Thumbnails,
	})
	s.Reconciler = service.NewReconciler(objects, ledger, cfg.ReconcileInterval)
	authSvc := commonauth.NewService(cfg.JWTSecret, cfg.JWTTTLMinutes)

	h := fileapi.NewHandler(fileSvc, authSvc, s.hub, pool.Ping)
	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20
	h.RegisterRoutes(r)

	s.HTTPServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start launches the background workers: the reconciliation sweeper and, when
// Redis is attached, the hub's event subscriber.
func (s *Server) Start(ctx context.Context) {
	s.Reconciler.Start(ctx)
	if s.redis != nil {
		if err := s.hub.StartRedisSubscriber(ctx); err != nil {
			commonlog.Errorf("event=fileman_init component=hub status=subscribe_failed error=%v", err)
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTPServer.Shutdown(ctx)
	s.Reconciler.Stop()
	s.hub.StopRedisSubscriber()
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.mqConn != nil {
		_ = s.mqConn.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.pool.Close()
	return err
}
