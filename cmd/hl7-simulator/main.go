// Package main 回放模拟器入口：同时提供上游 MLLP 回放服务和下游呼叫接收端。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/belfioreasia/swemls-aki-prediction/internal/logger"
	"github.com/belfioreasia/swemls-aki-prediction/internal/simulator"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	messagesPath  string
	mllpAddress   string
	pagerAddress  string
	shortMessages bool
	logFormat     string
)

var rootCmd = &cobra.Command{
	Use:   "hl7-simulator",
	Short: "Replays HL7 messages over MLLP and receives pager alerts",
	Long: `hl7-simulator stands in for the hospital integration engine during testing.

It serves a fixed list of HL7 messages over MLLP to every client that
connects, waiting for an acknowledgment after each message, and runs an
HTTP receiver that accepts pager alerts on /page.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&messagesPath, "messages", "messages.mllp", "path to the MLLP replay file")
	rootCmd.Flags().StringVar(&mllpAddress, "mllp", "0.0.0.0:8440", "address to serve MLLP replay on")
	rootCmd.Flags().StringVar(&pagerAddress, "pager", "0.0.0.0:8441", "address to serve the pager receiver on")
	rootCmd.Flags().BoolVar(&shortMessages, "short-messages", false, "split each frame across two writes")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "console", "log format: json or console")
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logger.New("info", logFormat, "hl7-simulator")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	messages, err := simulator.LoadMessages(messagesPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	mllpServer := simulator.NewMLLPServer(mllpAddress, messages, shortMessages, log)
	pagerReceiver := simulator.NewPagerReceiver(pagerAddress, log)

	errChan := make(chan error, 2)
	go func() {
		if err := mllpServer.Start(ctx); err != nil {
			errChan <- err
		}
	}()
	go func() {
		// /shutdown 停止接收端后整个模拟器退出
		errChan <- pagerReceiver.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		cancel()
		if err != nil {
			return err
		}
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
