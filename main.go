package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"Symposium/auth"
	"Symposium/client"
	"Symposium/config"
	"Symposium/form"
	"Symposium/handler"
	"Symposium/logging"
	"Symposium/notify"
	"Symposium/repo"
	"Symposium/service"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	logLevel := pflag.String("log-level", "", "override LOG_LEVEL")
	noBot := pflag.Bool("no-bot", false, "serve the HTTP API only, without Telegram polling")
	hashPassword := pflag.String("hash-password", "", "print the bcrypt hash of a password for ADMIN_PASSWORD_HASH and exit")
	pflag.Parse()

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Error hashing password")
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("Error setting up logging")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := InitializeStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing registration store")
	}
	if store != nil {
		defer store.Close()
	}

	renderer, err := notify.NewRenderer(notify.DefaultBranding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing email templates")
	}
	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.GmailUser,
		Password: cfg.GmailPass,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating mailer")
	}
	go verifyMailer(ctx, mailer)

	var b *bot.Bot
	var alerters []notify.Alerter
	var registrationBot *handler.RegistrationBot
	if cfg.TelegramToken != "" {
		registrationBot, b, err = newBot(cfg, store)
		if err != nil {
			log.Fatal().Err(err).Msg("Error creating bot")
		}
		if cfg.TelegramAdminChatID != 0 {
			alerters = append(alerters, notify.NewTelegramAlerter(b, cfg.TelegramAdminChatID))
		}
	}

	adminEmail := cfg.AdminEmail
	if adminEmail == "" {
		adminEmail = cfg.GmailUser
	}
	registrar := service.NewRegistrar(
		notify.NewDispatcher(renderer, mailer, adminEmail, alerters...),
		store,
		service.WithDispatchTimeout(service.DispatchBudget(cfg.SubmitTimeout)),
	)
	if registrationBot != nil {
		registrationBot.SetSubmitter(botSubmitter(cfg, registrar))
	}

	var verifier auth.CredentialVerifier
	var sessions *auth.SessionIssuer
	if cfg.AdminLoginEnabled() {
		verifier = auth.NewBcryptVerifier(cfg.AdminLoginEmail, cfg.AdminPasswordHash)
		sessions, err = auth.NewSessionIssuer(cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("Error configuring admin sessions")
		}
	} else {
		log.Warn().Msg("Admin login disabled: set ADMIN_LOGIN_EMAIL, ADMIN_PASSWORD_HASH and SESSION_SECRET to enable it")
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		Handler:           handler.NewAPI(registrar, verifier, sessions, cfg.AllowedOrigins).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if b != nil && !*noBot {
		g.Go(func() error {
			log.Info().Msg("Bot started")
			b.Start(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Shutdown with error")
	}
	log.Info().Msg("Bot stopped")
}

// InitializeStore opens the registration store selected by STORE_DRIVER.
// It returns a nil store for the "none" driver.
func InitializeStore(ctx context.Context, cfg config.Config) (repo.RegistrationStore, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		store, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("SQLite store ready")
		return store, nil
	case config.StoreFirebase:
		store, err := repo.NewFirebaseConnector(ctx, cfg.FirebaseKeyPath, cfg.FirebaseDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("error creating Firebase connector: %w", err)
		}
		log.Info().Msg("Firebase store ready")
		return store, nil
	}
	log.Warn().Msg("No registration store configured; admin views are disabled")
	return nil, nil
}

func newBot(cfg config.Config, store repo.RegistrationStore) (*handler.RegistrationBot, *bot.Bot, error) {
	registrationBot := handler.NewRegistrationBot(nil, cfg.SubmitTimeout)
	registrationBot.SetSessionIdle(cfg.BotSessionIdle)
	adminBot := handler.NewAdminBot(store, cfg.AdminChats())

	opts := []bot.Option{
		bot.WithDefaultHandler(registrationBot.Handler),
		bot.WithMessageTextHandler("/registrations", bot.MatchTypePrefix, adminBot.Handler),
		bot.WithMessageTextHandler("/summary", bot.MatchTypePrefix, adminBot.Handler),
	}
	b, err := bot.New(cfg.TelegramToken, opts...)
	if err != nil {
		return nil, nil, err
	}
	return registrationBot, b, nil
}

// botSubmitter posts to a remote registration service when one is configured
// and otherwise registers in-process.
func botSubmitter(cfg config.Config, registrar *service.Registrar) form.Submitter {
	if cfg.RegistrationAPIURL != "" {
		log.Info().Str("url", cfg.RegistrationAPIURL).Msg("Bot registrations go to remote service")
		return client.NewHTTPSubmitter(cfg.RegistrationAPIURL, nil)
	}
	return registrar
}

func verifyMailer(ctx context.Context, mailer *notify.SMTPMailer) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mailer.Verify(ctx); err != nil {
		log.Error().Err(err).Msg("SMTP Error")
		return
	}
	log.Info().Msg("Server ready to send emails")
}
