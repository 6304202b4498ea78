// Command disruptorctl is the deliberately-external operator CLI for
// the disruption bus: the protocol core exposes only the API of
// package bus, and this is one thin client of it, not part of the
// protocol.
package main

import (
	"context"
	"fmt"
	"os"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/shawwn/disruption/bus"
	"github.com/shawwn/disruption/config"
	"github.com/shawwn/disruption/directory"
)

var (
	configPath string
	logger     = gethlog.New("module", "disruptorctl")
)

func main() {
	root := &cobra.Command{
		Use:   "disruptorctl",
		Short: "operate a disruption shared-memory message bus",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "disruptorctl.toml", "path to TOML config file")

	root.AddCommand(joinCmd(), sendCmd(), recvCmd(), wipeCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Warn("using defaults: failed to load config", "path", configPath, "err", err)
		return config.Default()
	}
	return cfg
}

func newDirectory(cfg *config.Config) directory.Directory {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return directory.NewRedisDirectory(client)
}

func joinCmd() *cobra.Command {
	var address, username string
	var sendBufferSize int64

	cmd := &cobra.Command{
		Use:   "join",
		Short: "join a bus and print the assigned participant id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if sendBufferSize == 0 {
				sendBufferSize = cfg.Bus.DefaultSendBufferSize
			}
			b, err := bus.Join(context.Background(), newDirectory(cfg), address, username, sendBufferSize)
			if err != nil {
				return err
			}
			defer b.Leave()
			fmt.Printf("joined %s as %s: id=%d\n", address, username, b.ID())
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "bus address")
	cmd.Flags().StringVar(&username, "username", "", "participant username")
	cmd.Flags().Int64Var(&sendBufferSize, "send-buffer-size", 0, "payload arena size in bytes (0 = config default)")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("username")
	return cmd
}

func sendCmd() *cobra.Command {
	var address, username, message string
	var sendBufferSize int64

	cmd := &cobra.Command{
		Use:   "send",
		Short: "join a bus, send one message, and leave",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if sendBufferSize == 0 {
				sendBufferSize = cfg.Bus.DefaultSendBufferSize
			}
			ctx := context.Background()
			b, err := bus.Join(ctx, newDirectory(cfg), address, username, sendBufferSize)
			if err != nil {
				return err
			}
			defer b.Leave()

			if !b.Send([]byte(message)) {
				return fmt.Errorf("send: arena full")
			}
			fmt.Println("sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "bus address")
	cmd.Flags().StringVar(&username, "username", "", "participant username")
	cmd.Flags().StringVar(&message, "message", "", "message body to send")
	cmd.Flags().Int64Var(&sendBufferSize, "send-buffer-size", 0, "payload arena size in bytes (0 = config default)")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("message")
	return cmd
}

func recvCmd() *cobra.Command {
	var address, username string
	var sendBufferSize int64

	cmd := &cobra.Command{
		Use:   "recv",
		Short: "join a bus and drain every currently available message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if sendBufferSize == 0 {
				sendBufferSize = cfg.Bus.DefaultSendBufferSize
			}
			ctx := context.Background()
			b, err := bus.Join(ctx, newDirectory(cfg), address, username, sendBufferSize)
			if err != nil {
				return err
			}
			defer b.Leave()

			for {
				msg := b.Recv()
				if msg == bus.None {
					break
				}
				fmt.Printf("seq=%d sender=%s size=%d data=%q\n",
					b.Sequence(msg), b.Sender(msg), b.Size(msg), b.Data(msg))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "bus address")
	cmd.Flags().StringVar(&username, "username", "", "participant username")
	cmd.Flags().Int64Var(&sendBufferSize, "send-buffer-size", 0, "payload arena size in bytes (0 = config default)")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("username")
	return cmd
}

func wipeCmd() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "best-effort destroy a bus address; callers must ensure nobody is joined",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			return bus.Wipe(context.Background(), newDirectory(cfg), address)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "bus address")
	cmd.MarkFlagRequired("address")
	return cmd
}
