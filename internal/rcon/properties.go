package rcon

import (
	"context"
	"fmt"

	"github.com/sissm-go/pioverride/internal/config"
	"go.uber.org/zap"
)

// Transport names accepted in configuration.
const (
	TransportRCON    = "rcon"
	TransportWebRCON = "webrcon"
)

// New builds the executor selected by cfg.Transport.
func New(cfg config.RCONConfig, logger *zap.Logger) (Executor, error) {
	switch cfg.Transport {
	case "", TransportRCON:
		return NewClient(cfg.Address, cfg.Password, cfg.Timeout, logger), nil
	case TransportWebRCON:
		return NewWebClient(cfg.Address, cfg.Password, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown rcon transport %q", cfg.Transport)
	}
}

// GameModeProperties sets game mode properties through the console.
type GameModeProperties struct {
	exec   Executor
	logger *zap.Logger
}

// NewGameModeProperties wraps exec.
func NewGameModeProperties(exec Executor, logger *zap.Logger) *GameModeProperties {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameModeProperties{exec: exec, logger: logger.Named("rcon")}
}

// SetGameModeProperty runs "gamemodeproperty <name> <value>".
func (g *GameModeProperties) SetGameModeProperty(ctx context.Context, name, value string) error {
	reply, err := g.exec.Execute(ctx, fmt.Sprintf("gamemodeproperty %s %s", name, value))
	if err != nil {
		return err
	}
	g.logger.Debug("gamemodeproperty reply",
		zap.String("property", name),
		zap.String("reply", reply),
	)
	return nil
}
