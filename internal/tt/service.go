package tt

// Service is the orchestration layer that coordinates the identity store,
// discovery, policy and orchestrator to run the contract lifecycle for the CLI.
type Service struct {
	database     Database
	transport    Transport
	fsmgr        FilesystemManager
	logger       Logger
	clock        Clock
	idgen        IDGenerator
	settings     Settings
	discovery    *Discovery
	orchestrator *Orchestrator
}

// NewService creates a new Service with the provided dependencies.
// The transport's connection lifecycle stays with the caller.
func NewService(database Database, transport Transport, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator, settings Settings) *Service {
	return &Service{
		database:     database,
		transport:    transport,
		fsmgr:        fsmgr,
		logger:       logger,
		clock:        clock,
		idgen:        idgen,
		settings:     settings,
		discovery:    NewDiscovery(database, transport, logger, settings.ValidationRate, settings.ValidationTTL),
		orchestrator: NewOrchestrator(database, transport, fsmgr, logger, clock, idgen, settings),
	}
}

// Discovery returns the service's discovery engine.
func (s *Service) Discovery() *Discovery {
	return s.discovery
}

// Orchestrator returns the service's transfer orchestrator.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

func (s *Service) destinationTitle(id int64) string {
	return s.settings.Destinations[id]
}
