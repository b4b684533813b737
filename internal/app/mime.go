package app

import (
	"log/slog"
	"mime"
	"sync"
)

// staticTypes covers the asset extensions shipped under web/static; each is
// registered only when the host MIME table lacks it.
var staticTypes = map[string]string{
	".css":         "text/css; charset=utf-8",
	".js":          "text/javascript; charset=utf-8",
	".webmanifest": "application/manifest+json",
	".svg":         "image/svg+xml",
}

var registerOnce sync.Once

func registerStaticTypes(logger *slog.Logger) {
	registerOnce.Do(func() {
		for ext, typ := range staticTypes {
			if mime.TypeByExtension(ext) != "" {
				continue
			}
			if err := mime.AddExtensionType(ext, typ); err != nil {
				logger.Warn("register MIME type", slog.String("ext", ext), slog.Any("error", err))
			}
		}
	})
}
