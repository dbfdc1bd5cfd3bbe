package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"topicmsg/internal/config"
	"topicmsg/internal/repository/account"
	"topicmsg/internal/service/app"
	redisSvc "topicmsg/internal/service/redis"
	"topicmsg/internal/transport/httptransport"
	"topicmsg/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		nodeAddr   string
	)

	cmd := &cobra.Command{
		Use:   "client <account name>",
		Short: "Terminal chat over a direct conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("node") {
				cfg.Node.Addr = nodeAddr
			}

			logger, err := log.New(cfg.Log.Level, cfg.Log.Development)
			if err != nil {
				return err
			}
			log.SetLogger(logger)
			defer log.Sync()

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

			var nodeOpts []httptransport.Option
			if cfg.Node.TLS {
				nodeOpts = append(nodeOpts, httptransport.WithTLS())
			}
			node := httptransport.New(cfg.Node.Addr, nodeOpts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.NewApp(account.NewAccountRepo(db), redisSvc.NewRedis(rdb), node)
			go func() {
				<-ctx.Done()
				a.Stop()
			}()
			a.Run(ctx, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&nodeAddr, "node", "", "node address (default localhost:9090)")
	return cmd
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
