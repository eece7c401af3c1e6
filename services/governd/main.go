// Command governd runs the governance proposal lifecycle coordinator as a
// standalone JSON-RPC service, the teacher's services/<name>d bootstrap
// shape (flag-based config path, structured logging, OTEL init, signal-
// driven graceful shutdown) adapted from a gRPC listener to an HTTP
// JSON-RPC mux.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nxgov/native/governance"
	"nxgov/native/governance/grpcinvoker"
	"nxgov/native/governance/sqlstore"
	"nxgov/observability/logging"
	telemetry "nxgov/observability/otel"
	"nxgov/rpc"
	"nxgov/services/governd/config"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/governd/config.toml", "path to governd config")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("NXGOV_ENV"))
	logger := logging.Setup("governd", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "governd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}

	if err := bootstrapConfig(store, cfg); err != nil {
		log.Fatalf("bootstrap config: %v", err)
	}
	roles, err := bootstrapRoles(cfg.Roles)
	if err != nil {
		log.Fatalf("bootstrap roles: %v", err)
	}

	invoker := grpcinvoker.New(hookAddressResolver(cfg.Hooks), nil)
	defer func() { _ = invoker.Close() }()

	hooks := governance.NewHookNotifier(store, invoker, logger)
	dispatcher := governance.NewDispatcher(store, invoker, logger)
	events := rpc.NewEventStream()
	coordinator := governance.NewCoordinator(store, roles, hooks, dispatcher, events, logger, nil)

	server := rpc.NewGovernanceServer(coordinator, store)
	limiter := rpc.NewRateLimiter(rpc.RateLimit{RatePerSecond: cfg.RateLimit.RatePerSecond, Burst: cfg.RateLimit.Burst})
	authVerifier := buildJWTVerifier(cfg.Auth)

	router := chi.NewRouter()
	router.Use(rpc.RequestID)
	router.Use(limiter.Middleware)
	router.Handle("/", authVerifier.Middleware(server))
	router.Handle("/events", events)
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: router,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runHookDrainLoop(rootCtx, hooks, cfg.Hooks, logger)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("governd listening", "address", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing shutdown", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve http: %v", err)
		}
	}
}

// openStore selects the Store backend per cfg.Store: "leveldb" (default)
// opens the LevelDB-backed KVStore at cfg.DataDir; "sqlite" opens the
// gorm+glebarez/sqlite backend at the same path, for single-node
// deployments that would rather not manage a LevelDB data directory.
func openStore(cfg config.Config) (governance.Store, error) {
	switch cfg.Store {
	case "", "leveldb":
		return governance.OpenLevelDBStore(cfg.DataDir)
	case "sqlite":
		return sqlstore.Open(cfg.DataDir)
	default:
		return nil, fmt.Errorf("governd: unknown store backend %q", cfg.Store)
	}
}

// bootstrapConfig seeds the store's Config record from the TOML policy
// settings on first run; an already-initialized Config is left untouched
// so a restart never silently resets live quorum/passing thresholds.
func bootstrapConfig(store governance.Store, cfg config.Config) error {
	existing, err := store.GetConfig()
	if err != nil {
		return err
	}
	if existing.Initialized {
		return nil
	}
	seeded := governance.Config{
		Name:            cfg.Policy.Name,
		Description:     cfg.Policy.Description,
		Initialized:     true,
		MinVotingPeriod: cfg.Policy.MinVotingPeriodSeconds * int64(time.Second),
		MinPassingThreshold: governance.ProposalPassingThreshold{
			Quorum:           governance.PercentFromWhole(cfg.Policy.MinQuorumPercent),
			PassingThreshold: governance.PercentFromWhole(cfg.Policy.MinPassingPercent),
		},
		VotingMayEndEarly: cfg.Policy.VotingMayEndEarly,
	}
	if cfg.Hooks.ValidatorTarget != "" {
		target, err := governance.DecodePrincipal(cfg.Hooks.ValidatorTarget)
		if err != nil {
			return err
		}
		seeded.ValidatorHook = &target
	}
	if cfg.Hooks.VoteManagerTarget != "" {
		target, err := governance.DecodePrincipal(cfg.Hooks.VoteManagerTarget)
		if err != nil {
			return err
		}
		seeded.VoteManagerHook = &target
	}
	return store.PutConfig(seeded)
}

// bootstrapRoles builds a RoleGate from the TOML role lists. Role
// membership is in-memory only (spec.md §6: "role persistence is out of
// scope"), so this runs fresh on every start.
func bootstrapRoles(cfg config.RoleConfig) (*governance.RoleGate, error) {
	admins, err := decodePrincipals(cfg.Admins)
	if err != nil {
		return nil, err
	}
	gate := governance.NewRoleGate(admins...)
	groups := []struct {
		role       governance.Role
		principals []string
	}{
		{governance.RoleProposer, cfg.Proposers},
		{governance.RoleVoteManager, cfg.VoteManagers},
		{governance.RoleRevoker, cfg.Revokers},
		{governance.RoleExecutor, cfg.Executors},
		{governance.RoleForceExecutor, cfg.ForceExecutors},
		{governance.RoleValidator, cfg.Validators},
	}
	for _, group := range groups {
		principals, err := decodePrincipals(group.principals)
		if err != nil {
			return nil, err
		}
		for _, p := range principals {
			if err := gate.AddRole(group.role, p); err != nil {
				return nil, err
			}
		}
	}
	return gate, nil
}

func decodePrincipals(raw []string) ([]governance.Principal, error) {
	out := make([]governance.Principal, 0, len(raw))
	for _, s := range raw {
		p, err := governance.DecodePrincipal(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// hookAddressResolver resolves the two governance Principals this
// deployment is configured to talk to (the validator and vote-manager
// hooks) to their configured network addresses. The Dispatcher shares this
// resolver through the same invoker, so a proposal message whose target is
// neither of these two principals fails to resolve.
func hookAddressResolver(hooks config.HookConfig) grpcinvoker.AddressResolver {
	return func(target governance.Principal) (string, error) {
		key := target.String()
		switch key {
		case hooks.ValidatorTarget:
			return hooks.ValidatorAddress, nil
		case hooks.VoteManagerTarget:
			return hooks.VoteManagerAddress, nil
		default:
			return "", fmt.Errorf("governd: no address configured for principal %s", key)
		}
	}
}

// runHookDrainLoop periodically drains the pending-hook-task stack
// (spec.md §4.8), notifying whichever collaborator is configured. Both
// push paths (submit's validator notification, validate's vote-manager
// notification) share one LIFO queue, so a deployment that wires both
// hooks drains once per tick against the validator target first; a
// deployment wiring only one hook drains against that one.
func runHookDrainLoop(ctx context.Context, hooks *governance.HookNotifier, cfg config.HookConfig, logger *slog.Logger) {
	interval := cfg.DrainInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	target, method, ok := primaryHookTarget(cfg)
	if !ok {
		logger.Info("governd: no hook target configured, drain loop idle")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if drained, err := hooks.DrainPending(ctx, target, method); err != nil {
				logger.Warn("governd: hook drain failed", "error", err)
			} else if drained > 0 {
				logger.Debug("governd: drained hook tasks", "count", drained)
			}
		}
	}
}

// buildJWTVerifier constructs an optional bearer-token layer in front of
// RoleGate. An empty Issuer leaves the deployment running without it,
// relying on RoleGate's per-call authorization alone.
func buildJWTVerifier(cfg config.AuthConfig) *rpc.JWTVerifier {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil
	}
	secret := strings.TrimSpace(os.Getenv(cfg.SecretEnv))
	if secret == "" {
		log.Fatalf("auth.issuer is set but %s is empty", cfg.SecretEnv)
	}
	return rpc.NewJWTVerifier([]byte(secret), issuer, 0)
}

func primaryHookTarget(cfg config.HookConfig) (governance.Principal, string, bool) {
	if cfg.ValidatorTarget != "" {
		if target, err := governance.DecodePrincipal(cfg.ValidatorTarget); err == nil {
			return target, cfg.ValidatorMethod, true
		}
	}
	if cfg.VoteManagerTarget != "" {
		if target, err := governance.DecodePrincipal(cfg.VoteManagerTarget); err == nil {
			return target, cfg.VoteManagerMethod, true
		}
	}
	return governance.Principal{}, "", false
}
