package app

import (
	"log"
	"time"

	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"
	"bridge-backend/internal/events"
	"bridge-backend/internal/handlers"
	"bridge-backend/internal/repository"
	"bridge-backend/internal/router"
	"bridge-backend/internal/services"
	"bridge-backend/internal/utils"

	"gorm.io/gorm"
)

// ServiceContainer wires repositories, services and handlers in dependency
// order and owns their lifecycle.
type ServiceContainer struct {
	IntentRepo   repository.TransferIntentRepository
	StrandedRepo repository.StrandedTransferRepository

	NATSClient *clients.NATSClient
	Publisher  *events.Publisher

	ChainService  *services.ChainService
	KeyService    *services.RelayerKeyService
	QueueService  *services.TransactionQueueService
	RelayService  *services.RelayService
	PushService   *services.WebsocketPushService
	Coordinator   *services.TransferCoordinator
	RetryService  *services.StrandedRetryService
	MonitorSvc    *services.MonitoringService
	RouterHandles *router.Handlers
}

// NewServiceContainer builds the full service graph
func NewServiceContainer(db *gorm.DB) (*ServiceContainer, error) {
	cfg := config.AppConfig

	fees, err := utils.NewFeeSchedule(&cfg.Bridge)
	if err != nil {
		return nil, err
	}

	// Event stream is optional: a missing broker degrades to log-only alerts.
	var natsClient *clients.NATSClient
	if cfg.NATS.URL != "" {
		natsClient, err = clients.NewNATSClient(&cfg.NATS)
		if err != nil {
			log.Printf("⚠️ [App] NATS unavailable, continuing without event stream: %v", err)
			natsClient = nil
		}
	}
	publisher := events.NewPublisher(natsClient)

	intentRepo := repository.NewTransferIntentRepository(db)
	strandedRepo := repository.NewStrandedTransferRepository(db)

	chainService := services.NewChainService(cfg)
	keyService := services.NewRelayerKeyService(cfg)
	queueService := services.NewTransactionQueueService(db, chainService)
	relayService := services.NewRelayService(chainService, keyService, queueService)
	pushService := services.NewWebsocketPushService()

	gateway := services.NewBridgeGateway(chainService, relayService)
	coordinator := services.NewTransferCoordinator(
		intentRepo, strandedRepo, gateway, fees, publisher, pushService,
		time.Duration(cfg.Bridge.ResumeInterval)*time.Second,
	)
	retryService := services.NewStrandedRetryService(strandedRepo, intentRepo, gateway)
	monitorSvc := services.NewMonitoringService(db, chainService, keyService)

	routerHandles := &router.Handlers{
		Transfer:      handlers.NewTransferHandler(coordinator, intentRepo),
		Faucet:        handlers.NewFaucetHandler(relayService),
		Websocket:     handlers.NewWebsocketHandler(pushService),
		AdminAuth:     handlers.NewAdminAuthHandler(),
		AdminRecovery: handlers.NewAdminRecoveryHandler(strandedRepo, retryService),
	}

	return &ServiceContainer{
		IntentRepo:    intentRepo,
		StrandedRepo:  strandedRepo,
		NATSClient:    natsClient,
		Publisher:     publisher,
		ChainService:  chainService,
		KeyService:    keyService,
		QueueService:  queueService,
		RelayService:  relayService,
		PushService:   pushService,
		Coordinator:   coordinator,
		RetryService:  retryService,
		MonitorSvc:    monitorSvc,
		RouterHandles: routerHandles,
	}, nil
}

// Start launches the background services
func (sc *ServiceContainer) Start() {
	sc.QueueService.Start()
	sc.Coordinator.Start()
	sc.RetryService.Start()
	sc.MonitorSvc.Start()
	log.Println("✅ [App] All background services started")
}

// Stop shuts the background services down in reverse order
func (sc *ServiceContainer) Stop() {
	sc.MonitorSvc.Stop()
	sc.RetryService.Stop()
	sc.Coordinator.Stop()
	sc.QueueService.Stop()
	sc.ChainService.Close()
	if sc.NATSClient != nil {
		sc.NATSClient.Close()
	}
	log.Println("🛑 [App] All background services stopped")
}
