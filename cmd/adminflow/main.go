package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aaditya-brrt/adminflow/internal/cli"
	"github.com/Aaditya-brrt/adminflow/internal/config"
	adminhttp "github.com/Aaditya-brrt/adminflow/internal/http"
	"github.com/Aaditya-brrt/adminflow/internal/log"
	internal_storage "github.com/Aaditya-brrt/adminflow/internal/storage"
	"github.com/Aaditya-brrt/adminflow/pkg/broker"
	"github.com/Aaditya-brrt/adminflow/pkg/live"
	"github.com/Aaditya-brrt/adminflow/pkg/llm"
	"github.com/Aaditya-brrt/adminflow/pkg/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "adminflow"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the adminflow API server",
	Run: func(cmd *cobra.Command, args []string) {
		if err := serve(); err != nil {
			log.GetLogger().Errorf("Server exited with error: %v", err)
			os.Exit(1)
		}
	},
}

func serve() error {
	if err := godotenv.Load(); err != nil {
		log.GetLogger().Debugf("No .env file loaded: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := log.GetLogger()

	store, err := internal_storage.InitStore(cfg.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	var broadcaster live.Broadcaster
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		broadcaster = live.NewRedisBroadcaster(client)
		logger.Infof("Broadcasting live steps over redis at %s", cfg.Redis.Addr)
	} else {
		broadcaster = live.NewMemoryBroadcaster()
	}

	brokerClient := broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.APIKey)
	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model)

	workflows := service.NewWorkflowService(store, logger)
	executor := service.NewExecutor(store, workflows, brokerClient, llmClient, broadcaster, logger)
	scheduler := service.NewScheduler(workflows, executor, logger,
		time.Duration(cfg.Scheduler.IntervalSeconds)*time.Second)
	triggers := service.NewTriggerService(store, brokerClient, workflows, executor, logger, cfg.Broker.WebhookBaseURL)
	chats := service.NewChatService(store, brokerClient, llmClient, logger)

	if cfg.Scheduler.Autostart {
		scheduler.Start(context.Background())
		defer scheduler.Stop()
	}

	server := adminhttp.NewServer(workflows, executor, scheduler, triggers, chats, brokerClient, logger)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", addr)
		errCh <- server.Start(addr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Infof("Received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Database connection string")
	rootCmd.AddCommand(serveCmd)
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
