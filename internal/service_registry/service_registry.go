package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/signal-agent/internal/lifecycle"
	"github.com/benmeehan/signal-agent/internal/metrics"
	"github.com/benmeehan/signal-agent/internal/services"
	"github.com/benmeehan/signal-agent/internal/utils"
	"github.com/benmeehan/signal-agent/pkg/jwt"
	"github.com/benmeehan/signal-agent/pkg/login"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Service is anything with a start/stop lifecycle.
type Service interface {
	Start() error
	Stop() error
}

// Dependencies are the shared components the services are built from.
type Dependencies struct {
	Manager       *lifecycle.Manager
	Bridge        *services.BridgeService // nil when the bridge is disabled
	Authenticator login.Authenticator
	JWTManager    jwt.JWTManagerInterface
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
}

// ServiceRegistry manages the lifecycle of the agent's services.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes an empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered services in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices starts all registered services in order.
// If a service fails to start, the ones already started are stopped.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				if stopErr := sr.services[startedServices[i]].Stop(); stopErr != nil {
					sr.Logger.Error().Err(stopErr).Msgf("Failed to stop service: %s", startedServices[i])
				}
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices creates and registers the enabled services. The order
// matters: the bridge must accept events before the first channel opens, and
// the connection loop must run before the first login reports a token.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	var auth *services.AuthService

	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "bridge",
			enabled: config.Bridge.Enabled,
			constructor: func() (Service, error) {
				if deps.Bridge == nil {
					return nil, errors.New("bridge enabled without a bridge service")
				}
				return deps.Bridge, nil
			},
		},
		{
			name:    "connection",
			enabled: true,
			constructor: func() (Service, error) {
				return services.NewConnectionService(
					deps.Manager,
					config.Auth.Enabled,
					config.Server.HandoffGrace*2,
					sr.Logger.With().Str("service", "connection").Logger(),
				), nil
			},
		},
		{
			name:    "auth",
			enabled: config.Auth.Enabled,
			constructor: func() (Service, error) {
				if deps.Authenticator == nil {
					return nil, errors.New("auth enabled without an authenticator")
				}
				auth = services.NewAuthService(
					config.Auth.MaxRetries,
					config.Auth.BaseDelay,
					config.Auth.MaxDelay,
					config.Auth.RefreshMargin,
					deps.Authenticator,
					deps.Manager,
					deps.JWTManager,
					deps.Metrics,
					sr.Logger.With().Str("service", "auth").Logger(),
				)
				return auth, nil
			},
		},
		{
			name:    "status",
			enabled: config.Status.Enabled,
			constructor: func() (Service, error) {
				var reauth services.Reauthenticator
				if auth != nil {
					reauth = auth
				}
				logger := sr.Logger.With().Str("service", "status").Logger()
				router := services.NewStatusRouter(deps.Manager, reauth, deps.Gatherer, logger)
				return services.NewStatusService(config.Status.Address, router, logger), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if !svc.enabled {
			continue
		}
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
