package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mygain/portal-gateway/config"
	"github.com/mygain/portal-gateway/handlers"
	"github.com/mygain/portal-gateway/identity"
	"github.com/mygain/portal-gateway/middleware"
	"github.com/mygain/portal-gateway/repositories"
	"github.com/mygain/portal-gateway/repositories/postgres"
	"github.com/mygain/portal-gateway/repositories/rest"
	"github.com/mygain/portal-gateway/services/access"
	"github.com/mygain/portal-gateway/services/users"
	"go.uber.org/zap"
)

// Dependencies holds every wired component of the gateway.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB // nil when the role store is reached over REST

	// Stores and clients
	Roles    repositories.RoleRepository
	Identity *identity.Client
	Verifier *identity.JWTVerifier // nil when local verification is not configured

	// Services
	RoleCache *access.RoleCache
	Resolver  *access.Resolver
	Users     *users.Service

	// HTTP
	Origins        *middleware.OriginPolicy
	AuthMiddleware *middleware.AuthMiddleware
	HealthHandler  *handlers.HealthHandler
	UserHandler    *handlers.UserHandler
	SessionHandler *handlers.SessionHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initRoleStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize role store: %w", err)
	}

	if err := deps.initIdentity(cfg); err != nil {
		deps.closeDB()
		return nil, fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	deps.initServices(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("postgres_role_store", deps.DB != nil),
		zap.Bool("local_token_verification", deps.Verifier != nil),
	)
	return deps, nil
}

// initRoleStore connects the role store: PostgreSQL when DATABASE_URL is set,
// otherwise the provider's REST interface
func (d *Dependencies) initRoleStore(ctx context.Context, cfg *config.Config) error {
	if !cfg.UsesPostgres() {
		d.Roles = rest.NewRoleRepository(cfg.Identity, &http.Client{Timeout: cfg.Identity.Timeout}, d.Logger)
		d.Logger.Info("role store uses the REST interface")
		return nil
	}

	if cfg.Database.RunMigrations {
		if err := postgres.Migrate(cfg.Database.DSN(), d.Logger); err != nil {
			return err
		}
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.HealthCheck(ctx); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	d.Roles = postgres.NewRoleRepository(db, d.Logger)
	return nil
}

func (d *Dependencies) initIdentity(cfg *config.Config) error {
	d.Identity = identity.NewClient(cfg.Identity, nil, d.Logger)

	verifier, err := identity.NewVerifierFromConfig(cfg.Identity, d.Logger)
	if err != nil {
		return err
	}
	d.Verifier = verifier
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	// expirable.LRU never expires entries with a zero TTL, so zero turns the cache off
	if cfg.Access.RoleCacheTTL > 0 {
		d.RoleCache = access.NewRoleCache(cfg.Access.RoleCacheSize, cfg.Access.RoleCacheTTL)
	}
	d.Resolver = access.NewResolver(d.Roles, d.RoleCache, cfg.Access.RoleLookupTimeout, d.Logger)
	d.Users = users.NewService(d.Identity, d.Roles, d.Resolver, cfg.Users, d.Logger)
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.Origins = middleware.NewOriginPolicy(middleware.ParseAllowList(cfg.CORS.AllowedOrigins))

	// A nil *JWTVerifier must not reach the interface as a typed nil
	var verifier middleware.TokenVerifier
	if d.Verifier != nil {
		verifier = d.Verifier
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Identity, verifier, d.Roles, d.Resolver, d.Logger)

	d.HealthHandler = handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
		"role_store": d.Roles.Ping,
		"identity":   d.Identity.CheckReady,
	}, d.Logger)
	d.UserHandler = handlers.NewUserHandler(d.Users, d.Logger)
	d.SessionHandler = handlers.NewSessionHandler(d.Logger)
}

func (d *Dependencies) closeDB() error {
	if d.DB == nil {
		return nil
	}
	err := d.DB.Close()
	d.DB = nil
	return err
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if err := d.closeDB(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
