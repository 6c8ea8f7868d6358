package container

import (
	"fmt"
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joshua-takyi/invites/internal/config"
	"github.com/joshua-takyi/invites/internal/handlers"
	"github.com/joshua-takyi/invites/internal/helpers"
	"github.com/joshua-takyi/invites/internal/models"
	"github.com/joshua-takyi/invites/internal/protocol"
	"github.com/joshua-takyi/invites/internal/realtime"
	"github.com/joshua-takyi/invites/internal/services"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Cloudinary *cloudinary.Cloudinary
	Tokens     *helpers.TokenVerifier

	// Database clients
	SupabaseClient *supabase.Client
	MongoDBClient  *mongo.Client
	Pool           *pgxpool.Pool
	Views          *models.MongodbRepo

	Resolver    *services.IDResolver
	RSVPService *services.RSVPService
	WishService *services.WishService
	Dashboard   *services.DashboardService

	Origins  *protocol.OriginPolicy
	Registry *protocol.Registry
	Router   *protocol.Router
	Bridge   *handlers.FrameBridge

	Hub      *realtime.Hub
	Status   *realtime.Status
	Listener *realtime.Listener

	unwire func()
}

// NewContainer creates a new dependency injection container
func NewContainer(
	cfg *config.Config,
	logger *slog.Logger,
	cld *cloudinary.Cloudinary,
	supabaseClient *supabase.Client,
	mongoDBClient *mongo.Client,
	pool *pgxpool.Pool,
) (*Container, error) {
	origins, err := protocol.NewOriginPolicy(cfg.HostOrigin, cfg.AllowedOrigins...)
	if err != nil {
		return nil, fmt.Errorf("origin allow-list: %w", err)
	}

	// Initialize repositories
	supa := models.SupabaseNewRepo(supabaseClient, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	views := models.MongodbNewRepo(mongoDBClient, cfg.MongoDBName)
	pg := models.PostgresNewRepo(pool)
	images := helpers.NewCloudinaryImageStore(cld)

	limits := services.DefaultWishLimits
	limits.MaxImageBytes = cfg.MaxImageBytes

	// Template traffic runs on the server connection; host traffic carries the
	// host's token through Supabase.
	resolver := services.NewIDResolver(pg)
	rsvpService := services.NewRSVPService(resolver, pg, views, logger)
	wishService := services.NewWishService(resolver, pg, supa, pg, images, limits, logger)
	dashboard := services.NewDashboardService(resolver, supa, supa, supa, views, cfg.CacheTTL, logger)

	registry := protocol.NewRegistry()
	router := protocol.NewRouter(registry, origins, rsvpService, wishService, dashboard, logger)

	hub := realtime.NewHub()
	status := realtime.NewStatus(cfg.DisconnectDebounce)
	listener := realtime.NewListener(pool, cfg.NotifyChannel, status, logger)
	unwire := realtime.Wire(listener, status, hub, dashboard)

	bridge := handlers.NewFrameBridge(registry, router, resolver, rsvpService, dashboard, hub, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Cloudinary:     cld,
		Tokens:         helpers.NewTokenVerifier(cfg.SupabaseURL, logger),
		SupabaseClient: supabaseClient,
		MongoDBClient:  mongoDBClient,
		Pool:           pool,
		Views:          views,
		Resolver:       resolver,
		RSVPService:    rsvpService,
		WishService:    wishService,
		Dashboard:      dashboard,
		Origins:        origins,
		Registry:       registry,
		Router:         router,
		Bridge:         bridge,
		Hub:            hub,
		Status:         status,
		Listener:       listener,
		unwire:         unwire,
	}, nil
}

// Close stops background work owned by the container. Database clients are
// closed by whoever opened them.
func (c *Container) Close() {
	c.unwire()
	c.Tokens.Close()
	c.Status.Stop()
	c.Dashboard.Stop()
}
