package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/virtualclone/internal/profile"
	"github.com/hrygo/virtualclone/internal/version"
	"github.com/hrygo/virtualclone/server"
)

var (
	rootCmd = &cobra.Command{
		Use:   "virtualclone",
		Short: `A conversational clone that answers questions from its own script and transcripts.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide the environment themselves.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			instanceProfile, err := loadProfile()
			if err != nil {
				return err
			}
			setupLogger(instanceProfile, os.Stderr)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := newApp(ctx, instanceProfile)
			if err != nil {
				slog.Error("failed to initialize", "error", err)
				return err
			}
			a.warmup()
			a.watchContext(ctx)

			s, err := server.NewServer(ctx, instanceProfile, a.store, server.Dependencies{
				Conversation: a.conversation,
				Metrics:      a.metrics,
				Channels:     a.chatChannels(ctx),
			})
			if err != nil {
				a.close()
				slog.Error("failed to create server", "error", err)
				return err
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				a.close()
				slog.Error("failed to start server", "error", err)
				return err
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "memory")
	viper.SetDefault("port", 5000)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 5000, "port of server")
	rootCmd.PersistentFlags().String("unix-sock", "", "path to the unix socket, overrides --addr and --port")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "memory", "session store driver (memory, sqlite, postgres, redis)")
	rootCmd.PersistentFlags().String("dsn", "", "session store source name (aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the public url of your virtualclone instance")

	for _, name := range []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("virtualclone")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(chatCmd, askCmd)
}

// loadProfile builds the profile from flags, environment and defaults.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Addr:        viper.GetString("addr"),
		Port:        viper.GetInt("port"),
		UNIXSock:    viper.GetString("unix-sock"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		InstanceURL: viper.GetString("instance-url"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	return instanceProfile, nil
}

// setupLogger installs a JSON handler in prod and a text handler otherwise.
func setupLogger(p *profile.Profile, w io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(p.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler).With("version", version.String()))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("VirtualClone %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
	}
	if !version.IsRelease(version.Version) {
		fmt.Fprintf(os.Stderr, "Running a pre-release build (%s)\n", version.String())
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Session store: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if !profile.AIEnabled {
		fmt.Println("AI: disabled (no LLM API key)")
	}

	if len(profile.UNIXSock) == 0 {
		host := profile.Addr
		if host == "" {
			host = "localhost"
		}
		fmt.Printf("Server running on port %d\n", profile.Port)
		fmt.Printf("Chat at: http://%s:%d\n", host, profile.Port)
	} else {
		fmt.Printf("Server running on unix socket: %s\n", profile.UNIXSock)
	}
	if profile.TelegramBotToken != "" {
		fmt.Println("Telegram webhook: POST /chat-apps/telegram/webhook")
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError explains common session store connection failures.
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nSession store connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintf(os.Stderr, "\n  The %s server is not reachable. Check the DSN host and port.\n", profile.Driver)
		fmt.Fprintf(os.Stderr, "  Or keep sessions in memory: --driver=memory\n")
	case strings.Contains(errMsg, "sslmode"):
		fmt.Fprintf(os.Stderr, "\n  Add ?sslmode=disable to your PostgreSQL DSN.\n")
	case strings.Contains(errMsg, "password authentication failed") || strings.Contains(errMsg, "NOAUTH"):
		fmt.Fprintf(os.Stderr, "\n  Authentication failed. Check the credentials in the DSN or .env file.\n")
	case strings.Contains(errMsg, "permission denied"):
		fmt.Fprintf(os.Stderr, "\n  Permission denied. Check the data directory and database user permissions.\n")
	default:
		fmt.Fprintln(os.Stderr, "\n  Error:", errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
