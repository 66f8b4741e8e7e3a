package internal

import (
	"bitwise74/verify-api/internal/registry"
	"bitwise74/verify-api/internal/service"
	"bitwise74/verify-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Engine   *service.TokenEngine
	Registry *registry.Registry
	Notifier *service.Notifier
}
