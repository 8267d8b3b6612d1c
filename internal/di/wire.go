//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/reichmanjorgensen/legal-chat-auth/internal/app"
	"github.com/reichmanjorgensen/legal-chat-auth/internal/service"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		RepositorySet,
		SecuritySet,
		ServiceSet,
		RateLimitSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		provideBootstrapLogger,
		provideOpenDB,
		NewMigrationRunner,
	))
}

func InitializeAdminToolkit() (*AdminToolkit, error) {
	panic(wire.Build(
		ConfigSet,
		provideBootstrapLogger,
		provideOpenDB,
		provideRedisClient,
		RepositorySet,
		provideAuditDeadLetter,
		service.NewAuditRecorder,
		service.NewUserService,
		NewAdminToolkit,
	))
}
