package main

import (
	"github.com/clickstudio/click/internal/auth"
	"github.com/clickstudio/click/internal/config"
	"gorm.io/gorm"
)

func authService(gormDB *gorm.DB, cfg *config.Config) (*auth.Service, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}
	return auth.NewService(gormDB, tokens, cfg.Auth.BcryptCost), nil
}
