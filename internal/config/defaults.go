package config

const (
	defaultDataDir            = "~/.local/share/uplink"
	defaultStagingDir         = "~/.local/share/uplink/staging"
	defaultLogDir             = "~/.local/share/uplink/logs"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultCharacterLimit     = 0 // unlimited
	defaultProcessedFileLimit = 4
	defaultScreensPerFile     = 3
	defaultScreensPerRow      = 3
	defaultThumbnailWidth     = 350
	defaultRequestTimeout     = 30
	defaultUploadTimeout      = 60
	defaultUserAgent          = "uplink/0.1.0"
	defaultImageHostProvider  = "ptpimg"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Description: Description{
			CharacterLimit:     defaultCharacterLimit,
			ProcessedFileLimit: defaultProcessedFileLimit,
			ScreensPerFile:     defaultScreensPerFile,
			ScreensPerRow:      defaultScreensPerRow,
			ThumbnailWidth:     defaultThumbnailWidth,
		},
		HTTP: HTTP{
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
			UserAgent:      defaultUserAgent,
		},
		ImageHost: ImageHost{
			Provider: defaultImageHostProvider,
		},
		Trackers: map[string]Tracker{},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
