package http

import (
	"github.com/signcast/notify/internal/application/outbox"
	"github.com/signcast/notify/internal/infrastructure/dynamo"
	jwtinfra "github.com/signcast/notify/internal/infrastructure/jwt"
	"github.com/signcast/notify/internal/infrastructure/sns"
	"github.com/signcast/notify/internal/pkg/bus"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	ScreenRepo        *dynamo.ScreenRepo
	ScheduleRepo      *dynamo.ScheduleRepo
	PlaylistRepo      *dynamo.PlaylistRepo
	NotificationRepo  *dynamo.NotificationRepo
	PollingConfigRepo *dynamo.PollingConfigRepo

	// Hub is the in-process connection registry. OutboxSvc publishes
	// through either the hub directly or the Redis bridge; it is built
	// in main because the GC loop also hangs off it.
	Hub       *bus.Hub
	OutboxSvc outbox.Service

	JWTProvider *jwtinfra.Provider
	Alerter     sns.Alerter // nil when no topic is configured
}
