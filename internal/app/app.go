// Package app wires the configured backends into the application
// components shared by the server and the worker binaries.
package app

import (
	"context"
	"fmt"

	"ticketd/internal/bus"
	"ticketd/internal/inventory"
	"ticketd/internal/payment"
	"ticketd/internal/repository"
	"ticketd/internal/saga"
	"ticketd/internal/store"
	"ticketd/pkg/config"
	pkgredis "ticketd/pkg/redis"
)

// BuildStore creates the state store selected by the configuration
func BuildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), nil

	case config.StoreBackendRedis:
		client, err := pkgredis.NewClient(ctx, &pkgredis.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return store.NewRedisStore(client, "state"), nil

	case config.StoreBackendPostgres:
		return store.NewPostgresStore(ctx, &store.PostgresConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})

	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// BuildBus creates the event bus selected by the configuration
func BuildBus(ctx context.Context, cfg *config.Config) (bus.Bus, error) {
	switch cfg.Store.BusBackend {
	case config.BusBackendMemory:
		return bus.NewMemoryBus(nil), nil

	case config.BusBackendKafka:
		return bus.NewKafkaBus(ctx, &bus.KafkaBusConfig{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.ConsumerGroup,
			ClientID: cfg.Kafka.ClientID,
		})

	default:
		return nil, fmt.Errorf("unknown bus backend: %s", cfg.Store.BusBackend)
	}
}

// BuildGateway creates the payment simulator tuned by the configuration
func BuildGateway(cfg *config.Config) *payment.MockGateway {
	gateway := payment.NewMockGateway()
	if cfg.Payment.SuccessRate > 0 {
		gateway.SuccessRate = cfg.Payment.SuccessRate
	}
	gateway.ChargeDelay = cfg.Payment.ChargeDelay
	gateway.RefundDelay = cfg.Payment.RefundDelay
	return gateway
}

// Components are the assembled core collaborators
type Components struct {
	Store       store.Store
	Bus         bus.Bus
	Bookings    *repository.BookingRepository
	Events      *repository.EventRepository
	Inventory   *inventory.Manager
	Gateway     *payment.MockGateway
	Coordinator *saga.Coordinator
}

// Build assembles the core components and registers the saga handlers on
// the bus. The caller still has to start the bus.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	st, err := BuildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	b, err := BuildBus(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	bookings := repository.NewBookingRepository(st)
	events := repository.NewEventRepository(st)
	inv := inventory.NewManager(st, nil)
	gateway := BuildGateway(cfg)

	coordinator := saga.NewCoordinator(bookings, events, inv, gateway, b, nil)
	coordinator.Register()

	return &Components{
		Store:       st,
		Bus:         b,
		Bookings:    bookings,
		Events:      events,
		Inventory:   inv,
		Gateway:     gateway,
		Coordinator: coordinator,
	}, nil
}

// Close releases the components' resources
func (c *Components) Close() {
	if c.Bus != nil {
		_ = c.Bus.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}
