package service

import (
	"context"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-workspaces/audit"
	"github.com/goliatone/go-workspaces/authz"
	"github.com/goliatone/go-workspaces/catalog"
	"github.com/goliatone/go-workspaces/command"
	"github.com/goliatone/go-workspaces/membership"
	"github.com/goliatone/go-workspaces/pkg/types"
	"github.com/goliatone/go-workspaces/query"
	"github.com/goliatone/go-workspaces/registry"
	"github.com/goliatone/go-workspaces/ticket"
	"github.com/goliatone/go-workspaces/workspace"
	"github.com/uptrace/bun"
)

// Service is the entry point for go-workspaces. It wires the catalog, role
// registry, membership resolver, workspace store, ticket repository, audit
// trail, and the authorization gate into command/query facades.
type Service struct {
	cfg      Config
	commands Commands
	queries  Queries

	catalog    types.PermissionCatalog
	roles      types.RoleStore
	resolver   types.MembershipResolver
	workspaces types.WorkspaceStore
	tickets    *ticket.Repository
	history    types.HistoryRepository
	lister     query.MembershipLister
	gate       authz.Gate
}

// Commands exposes the service command handlers.
type Commands struct {
	WorkspaceCreate *command.WorkspaceCreateCommand
	RoleCreate      *command.RoleCreateCommand
	RoleUpdate      *command.RoleUpdateCommand
	RoleDelete      *command.RoleDeleteCommand
	RoleGrant       *command.RoleGrantCommand
	AssignRole      *command.AssignRoleCommand
	BulkAssign      *command.BulkAssignCommand
	TicketCreate    *command.TicketCreateCommand
	TicketUpdate    *command.TicketUpdateCommand
	TicketDelete    *command.TicketDeleteCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	RoleList         *query.RoleListQuery
	RoleDetail       *query.RoleDetailQuery
	HistoryFeed      *query.HistoryFeedQuery
	MembershipList   *query.MembershipListQuery
	WorkspaceResolve *query.WorkspaceResolveQuery
}

// Config captures dependencies. Only DB is strictly required; every store
// left nil is built from the DB with the shared Clock/IDGen/Logger/Hooks.
type Config struct {
	DB *bun.DB

	Catalog        types.PermissionCatalog
	RoleStore      types.RoleStore
	Resolver       types.MembershipResolver
	WorkspaceStore types.WorkspaceStore
	Tickets        *ticket.Repository
	History        types.HistoryRepository
	Lister         query.MembershipLister

	Gate        authz.Gate
	FeatureGate featuregate.FeatureGate

	Hooks  types.Hooks
	Clock  types.Clock
	IDGen  types.IDGenerator
	Logger types.Logger

	ResolverOptions []membership.ResolverOption
}

// New constructs a Service from the supplied configuration, building any
// store not provided from the DB.
func New(cfg Config) (*Service, error) {
	norm := normalizeConfig(cfg)
	if norm.DB == nil && (norm.Catalog == nil || norm.RoleStore == nil ||
		norm.Resolver == nil || norm.WorkspaceStore == nil ||
		norm.Tickets == nil || norm.History == nil) {
		return nil, types.ErrServiceNotReady
	}

	s := &Service{cfg: norm}
	if err := s.buildStores(norm); err != nil {
		return nil, err
	}

	s.gate = norm.Gate
	if s.gate == nil {
		gate, err := authz.NewGate(s.resolver, s.workspaces)
		if err != nil {
			return nil, err
		}
		s.gate = gate
	}

	s.commands = s.buildCommands(norm)
	s.queries = s.buildQueries()
	return s, nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = types.UUIDGenerator{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	return cfg
}

func (s *Service) buildStores(cfg Config) error {
	s.catalog = cfg.Catalog
	if s.catalog == nil {
		built, err := catalog.NewCatalog(catalog.CatalogConfig{
			DB:    cfg.DB,
			Clock: cfg.Clock,
			IDGen: cfg.IDGen,
		})
		if err != nil {
			return err
		}
		s.catalog = built
	}

	s.roles = cfg.RoleStore
	if s.roles == nil {
		built, err := registry.NewRoleStore(registry.RoleStoreConfig{
			DB:      cfg.DB,
			Catalog: s.catalog,
			Clock:   cfg.Clock,
			Hooks:   cfg.Hooks,
			Logger:  cfg.Logger,
			IDGen:   cfg.IDGen,
		})
		if err != nil {
			return err
		}
		s.roles = built
	}

	s.resolver = cfg.Resolver
	s.lister = cfg.Lister
	if s.resolver == nil {
		built, err := membership.NewResolver(membership.ResolverConfig{
			DB:     cfg.DB,
			Clock:  cfg.Clock,
			Hooks:  cfg.Hooks,
			Logger: cfg.Logger,
		}, cfg.ResolverOptions...)
		if err != nil {
			return err
		}
		s.resolver = built
		if s.lister == nil {
			s.lister = built
		}
	}
	if s.lister == nil {
		if lister, ok := s.resolver.(query.MembershipLister); ok {
			s.lister = lister
		}
	}

	s.workspaces = cfg.WorkspaceStore
	if s.workspaces == nil {
		built, err := workspace.NewStore(workspace.StoreConfig{
			DB:      cfg.DB,
			Catalog: s.catalog,
			Clock:   cfg.Clock,
			Hooks:   cfg.Hooks,
			Logger:  cfg.Logger,
			IDGen:   cfg.IDGen,
		})
		if err != nil {
			return err
		}
		s.workspaces = built
	}

	s.history = cfg.History
	auditRepo, _ := cfg.History.(*audit.Repository)
	if s.history == nil {
		built, err := audit.NewRepository(audit.RepositoryConfig{
			DB:    cfg.DB,
			Clock: cfg.Clock,
			IDGen: cfg.IDGen,
		})
		if err != nil {
			return err
		}
		auditRepo = built
		s.history = built
	}

	s.tickets = cfg.Tickets
	if s.tickets == nil {
		if auditRepo == nil {
			// a custom history repository cannot back the ticket trail
			return types.ErrMissingTicketRepository
		}
		built, err := ticket.NewRepository(ticket.RepositoryConfig{
			DB:       cfg.DB,
			Trail:    auditRepo,
			Resolver: s.resolver,
			Clock:    cfg.Clock,
			IDGen:    cfg.IDGen,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return err
		}
		s.tickets = built
	}
	return nil
}

func (s *Service) buildCommands(cfg Config) Commands {
	return Commands{
		WorkspaceCreate: command.NewWorkspaceCreateCommand(s.workspaces, s.gate),
		RoleCreate:      command.NewRoleCreateCommand(s.roles, s.workspaces, s.gate),
		RoleUpdate:      command.NewRoleUpdateCommand(s.roles, s.workspaces, s.gate),
		RoleDelete:      command.NewRoleDeleteCommand(s.roles, s.workspaces, s.gate),
		RoleGrant:       command.NewRoleGrantCommand(s.roles, s.workspaces, s.gate),
		AssignRole:      command.NewAssignRoleCommand(s.roles, s.resolver, s.workspaces, s.gate),
		BulkAssign:      command.NewBulkAssignCommand(cfg.DB, s.workspaces, s.gate, cfg.FeatureGate, cfg.Clock),
		TicketCreate:    command.NewTicketCreateCommand(s.tickets, s.workspaces, s.gate),
		TicketUpdate:    command.NewTicketUpdateCommand(s.tickets, s.workspaces, s.gate),
		TicketDelete:    command.NewTicketDeleteCommand(s.tickets, s.workspaces, s.gate),
	}
}

func (s *Service) buildQueries() Queries {
	return Queries{
		RoleList:         query.NewRoleListQuery(s.roles, s.workspaces, s.gate),
		RoleDetail:       query.NewRoleDetailQuery(s.roles, s.workspaces, s.gate),
		HistoryFeed:      query.NewHistoryFeedQuery(s.history, s.workspaces, s.gate),
		MembershipList:   query.NewMembershipListQuery(s.lister, s.workspaces, s.gate),
		WorkspaceResolve: query.NewWorkspaceResolveQuery(s.gate),
	}
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// Gate exposes the authorization gate so transports can reuse the same
// resolution pipeline.
func (s *Service) Gate() authz.Gate {
	if s == nil {
		return authz.NopGate()
	}
	return authz.Ensure(s.gate)
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil &&
		s.catalog != nil &&
		s.roles != nil &&
		s.resolver != nil &&
		s.workspaces != nil &&
		s.tickets != nil &&
		s.history != nil
}

// HealthCheck surfaces missing configuration for upstream transports.
func (s *Service) HealthCheck(_ context.Context) error {
	if !s.Ready() {
		return types.ErrServiceNotReady
	}
	switch {
	case s.catalog == nil:
		return types.ErrMissingCatalog
	case s.roles == nil:
		return types.ErrMissingRoleStore
	case s.resolver == nil:
		return types.ErrMissingResolver
	case s.workspaces == nil:
		return types.ErrMissingWorkspaceStore
	case s.history == nil:
		return types.ErrMissingHistoryRepository
	case s.tickets == nil:
		return types.ErrMissingTicketRepository
	}
	return nil
}
