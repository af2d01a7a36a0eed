package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"splitguard/internal/api"
	"splitguard/internal/config"
	"splitguard/internal/decision"
	"splitguard/internal/engine"
	"splitguard/internal/ipc"
	"splitguard/internal/journal"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			logrus.Info("💡 No .env file found, using environment variables only")
		}
	} else {
		logrus.Info("✅ Loaded environment from ../.env")
	}
	setupLogging()

	logrus.Info("🥾 ================================")
	logrus.Info("🥾  SPLITGUARD")
	logrus.Info("🥾  Tranquil Boots + Khanda split controllers")
	logrus.Info("🥾 ================================")

	appConfig, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to load configuration")
	}
	serverCfg := appConfig.Server

	// Live settings, persisted and hot-reloaded from the settings file.
	store := config.NewStore(appConfig.Settings, serverCfg.SettingsPath)
	var watcher *config.Watcher
	if serverCfg.SettingsPath != "" {
		if watcher, err = config.Watch(store); err != nil {
			logrus.WithError(err).Warn("⚠️ Settings hot reload disabled")
		} else {
			logrus.WithField("path", serverCfg.SettingsPath).Info("⚙️ Watching settings file")
		}
	}
	store.OnChange(func(s config.Settings) {
		logrus.WithFields(logrus.Fields{
			"tranquil": s.Tranquil.Enabled,
			"khanda":   s.Khanda.Enabled,
		}).Info("⚙️ Settings changed")
	})

	opts := engine.DefaultOptions(store)
	opts.TranquilTimings = appConfig.TranquilTimings
	opts.KhandaTimings = appConfig.KhandaTimings
	opts.Logger = logrus.StandardLogger()
	eng := engine.New(opts)

	if err := eng.StartEventLog(serverCfg.EventLogPath); err != nil {
		logrus.WithError(err).Warn("⚠️ Event log disabled")
	} else {
		logrus.WithField("path", serverCfg.EventLogPath).Info("📝 Event log started")
	}

	var jr *journal.Journal
	if serverCfg.JournalPath != "" {
		if jr, err = journal.Open(serverCfg.JournalPath, journal.DefaultQueueSize); err != nil {
			logrus.WithError(err).Warn("⚠️ Journal disabled")
		} else {
			eng.AddSink(jr)
			logrus.WithField("path", serverCfg.JournalPath).Info("🗄️ Journal opened")
		}
	}

	debugSrv := api.StartDebugServer(api.ObservabilityFromEnv(serverCfg.DebugAddr))

	server := api.NewServer(eng, store, serverCfg.APIToken)
	eng.AddSink(server.Hub())
	if err := server.Start(serverCfg.APIAddr); err != nil {
		logrus.WithError(err).Warn("⚠️ API server disabled")
	}
	if serverCfg.APIToken == "" {
		logrus.Warn("⚠️ SPLITGUARD_API_TOKEN not set - settings API is unauthenticated")
	}

	// The host link is the one hard dependency.
	link := ipc.NewServer(serverCfg.SocketPath, eng, []string{decision.Tranquil, decision.Khanda}, logrus.StandardLogger())
	if err := link.Start(); err != nil {
		logrus.WithError(err).Fatal("❌ Failed to bind host socket")
	}
	logrus.WithField("addr", link.Addr()).Info("🔌 Waiting for host adapter")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logrus.Info("✅ Splitguard ready! Press Ctrl+C to stop.")
	<-quit

	logrus.Info("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link.Stop()
	eng.Reset(engine.ReasonOperator)
	if err := server.Stop(ctx); err != nil {
		logrus.WithError(err).Warn("⚠️ API shutdown")
	}
	if debugSrv != nil {
		debugSrv.Shutdown(ctx)
	}
	if watcher != nil {
		watcher.Close()
	}
	eng.Close()
	if jr != nil {
		if err := jr.Close(); err != nil {
			logrus.WithError(err).Warn("⚠️ Journal close")
		}
	}
	logrus.Info("👋 Goodbye!")
}

// setupLogging applies LOG_LEVEL and LOG_FORMAT.
func setupLogging() {
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}
	if os.Getenv("LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
