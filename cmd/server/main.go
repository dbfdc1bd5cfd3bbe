package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topicmsg/internal/config"
	"topicmsg/internal/repository/contact"
	redisSvc "topicmsg/internal/service/redis"
	"topicmsg/internal/service/server"
	"topicmsg/internal/transport/redistransport"
	"topicmsg/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		redisAddr  string
		mongoURI   string
	)

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Relay node for topic-addressed envelopes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Node.Addr = addr
			}
			if cmd.Flags().Changed("redis") {
				cfg.Redis.Addr = redisAddr
			}
			if cmd.Flags().Changed("mongo") {
				cfg.Mongo.URI = mongoURI
			}

			logger, err := log.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			log.SetLogger(logger)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default localhost:9090)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address (default localhost:6379)")
	cmd.Flags().StringVar(&mongoURI, "mongo", "", "mongodb URI (default mongodb://localhost:27017)")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	mongoDBClient, err := initMongo(cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer mongoDBClient.Disconnect(context.Background())

	db := mongoDBClient.Database(cfg.Mongo.Database)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	transport := redistransport.New(redisSvc.NewRedis(rdb))
	contactRepo := contact.NewContactRepo(db)

	s := server.NewHttpServer(transport, contactRepo)
	if err := s.Run(ctx, cfg.Node.Addr); err != nil {
		log.Error("node stopped", zap.Error(err))
		return err
	}
	return nil
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
