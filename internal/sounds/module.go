package sounds

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-konference/internal/config"
)

// Module provides the sound clip library.
var Module = fx.Module("sounds",
	fx.Provide(NewLibraryFromConfig),
)

// NewLibraryFromConfig builds the library from the sounds config section.
func NewLibraryFromConfig(cfg *config.Config, logger *zap.Logger) (*Library, error) {
	return NewLibrary(logger.Named("sounds"), cfg.Sounds.Directory, cfg.Sounds.CacheSize)
}
