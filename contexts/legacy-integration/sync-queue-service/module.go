package syncqueue

import (
	"log/slog"
	"time"

	httpadapter "rentbridge/contexts/legacy-integration/sync-queue-service/adapters/http"
	"rentbridge/contexts/legacy-integration/sync-queue-service/adapters/memory"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/commands"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/queries"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/workers"
	"rentbridge/contexts/legacy-integration/sync-queue-service/application/workflow"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/entities"
	"rentbridge/contexts/legacy-integration/sync-queue-service/domain/services"
	"rentbridge/contexts/legacy-integration/sync-queue-service/ports"
)

// Module is the composition surface of the legacy sync queue.
// Store and Legacy are only set by NewInMemoryModule.
type Module struct {
	Handler   httpadapter.Handler
	Processor workers.Processor
	Scheduler workers.Scheduler
	Wake      *workers.WakeSignal
	Store     *memory.Store
	Legacy    *memory.LegacyPlatform
}

type Dependencies struct {
	Queue       ports.QueueStore
	Primary     ports.PrimaryStore
	Legacy      ports.LegacyPlatform
	Config      ports.SyncConfigProvider
	Waker       ports.Waker
	Alerts      ports.AlertPublisher
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Backoff     services.BackoffPolicy

	WorkerID            string
	BatchSize           int
	PollInterval        time.Duration
	MaintenanceInterval time.Duration
	Retention           time.Duration
	ReviewAge           time.Duration
	StaleTimeout        time.Duration
	Logger              *slog.Logger
}

// NewModule wires the queue use cases and workers against explicit ports.
// Without a Waker, enqueues wake the in-process scheduler directly.
func NewModule(deps Dependencies) Module {
	wake := workers.NewWakeSignal()
	waker := deps.Waker
	if waker == nil {
		waker = wake
	}

	syncWorkflow := workflow.AtomicSync{
		Queue:   deps.Queue,
		Legacy:  deps.Legacy,
		Primary: deps.Primary,
		Config:  deps.Config,
		Clock:   deps.Clock,
		Logger:  deps.Logger,
	}
	retries := workers.RetryManager{
		Queue:  deps.Queue,
		Alerts: deps.Alerts,
		Policy: deps.Backoff,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	processor := workers.Processor{
		Queue:     deps.Queue,
		Workflow:  syncWorkflow,
		Retries:   retries,
		Clock:     deps.Clock,
		WorkerID:  deps.WorkerID,
		BatchSize: deps.BatchSize,
		Logger:    deps.Logger,
	}
	scheduler := workers.Scheduler{
		Queue:     deps.Queue,
		Processor: processor,
		Cleanup: workers.CleanupJob{
			Queue:     deps.Queue,
			Alerts:    deps.Alerts,
			Clock:     deps.Clock,
			Retention: deps.Retention,
			ReviewAge: deps.ReviewAge,
			Logger:    deps.Logger,
		},
		Sweeper: workers.StalenessSweeper{
			Queue:   deps.Queue,
			Clock:   deps.Clock,
			Timeout: deps.StaleTimeout,
			Logger:  deps.Logger,
		},
		Wake:                wake,
		Clock:               deps.Clock,
		PollInterval:        deps.PollInterval,
		MaintenanceInterval: deps.MaintenanceInterval,
		Logger:              deps.Logger,
	}

	handler := httpadapter.Handler{
		Enqueue: commands.EnqueueUseCase{
			Queue:       deps.Queue,
			Waker:       waker,
			IDGenerator: deps.IDGenerator,
			Clock:       deps.Clock,
			Logger:      deps.Logger,
		},
		RetryItem: commands.RetryFailedItemUseCase{
			Queue:  deps.Queue,
			Waker:  waker,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		Status: queries.GetQueueStatusUseCase{
			Queue:  deps.Queue,
			Clock:  deps.Clock,
			Logger: deps.Logger,
		},
		DeadLetters: queries.ListDeadLettersUseCase{
			Queue:  deps.Queue,
			Logger: deps.Logger,
		},
		Processor: processor,
		Logger:    deps.Logger,
	}

	return Module{
		Handler:   handler,
		Processor: processor,
		Scheduler: scheduler,
		Wake:      wake,
	}
}

// NewInMemoryModule wires the queue against in-memory storage and a scripted
// legacy platform, for local development and tests.
func NewInMemoryModule(cfg entities.SyncConfig, clock ports.Clock, logger *slog.Logger) Module {
	store := memory.NewStore(logger)
	legacy := memory.NewLegacyPlatform()
	if clock == nil {
		clock = store
	}
	module := NewModule(Dependencies{
		Queue:       store,
		Primary:     store,
		Legacy:      legacy,
		Config:      cfg,
		Clock:       clock,
		IDGenerator: store,
		WorkerID:    "in-memory",
		Logger:      logger,
	})
	module.Store = store
	module.Legacy = legacy
	return module
}
