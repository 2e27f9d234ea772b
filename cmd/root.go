package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"roomrelay/pkg/config"
	"roomrelay/pkg/room"
	"roomrelay/pkg/server"
	"roomrelay/pkg/utils"
)

var (
	configPath string
	host       string
	port       int
	certFile   string
	keyFile    string
	staticDir  string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "roomrelay",
	Short: "Room-scoped chat and peer file relay over WebSocket",
	Long: `roomrelay serves a WebSocket endpoint where clients join rooms, announce a
username, chat, pair up with other connections and relay files either to a
whole room or to a single peer. The server keeps presence and pairing state
in memory only.`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultPath, "config file (.ini, .yaml or .yml)")
	flags.StringVar(&host, "host", "", "listen host")
	flags.IntVarP(&port, "port", "p", 0, "listen port")
	flags.StringVar(&certFile, "cert", "", "TLS certificate file")
	flags.StringVar(&keyFile, "key", "", "TLS key file")
	flags.StringVar(&staticDir, "static-dir", "", "directory holding index.html")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path := configPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("cert") {
		cfg.Server.CertFile = certFile
	}
	if flags.Changed("key") {
		cfg.Server.KeyFile = keyFile
	}
	if flags.Changed("static-dir") {
		cfg.Server.StaticDir = staticDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	cfg.Sanitize()
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := utils.SetupLogging(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rm := room.NewRoomManager(cfg.Room)
	managerDone := make(chan struct{})
	go func() {
		rm.Run(ctx)
		close(managerDone)
	}()

	relay := server.NewRelayServer(rm.InterHandleWebSocket, cfg.Server)
	relay.SetStatsProvider(func(ctx context.Context) (interface{}, error) {
		return rm.Stats(ctx)
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- relay.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		stop()
		<-managerDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("relay server: %w", err)
	case <-ctx.Done():
	}

	utils.InfoF("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := relay.Shutdown(shutdownCtx); err != nil {
		utils.WarnF("shutdown: %v", err)
	}
	<-managerDone
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		utils.ErrorF("%v", err)
		os.Exit(1)
	}
}
