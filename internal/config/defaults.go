package config

const (
	defaultDataDir    = "~/.local/share/folio"
	defaultLogDir     = "~/.local/share/folio/logs"
	defaultPolicyPath = "~/.config/folio/policy.yaml"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultResolverMaxDepth    = 5
	defaultResolverMinStrength = 0.5

	defaultAttachThreshold = 0.7
	defaultMergeThreshold  = 0.8
	defaultTitleWeight     = 0.8
	defaultAuthorWeight    = 0.2

	defaultWorksetSize        = 50
	defaultBatchWorkers       = 4
	defaultItemTimeoutSeconds = 120
	defaultPlateauPasses      = 2

	defaultSourceTimeoutSeconds = 20
	defaultSourceRPS            = 1.0

	defaultOpenCatalogBaseURL = "https://catalog.example.org"
	defaultBookmartBaseURL    = "https://books.example.com"
	defaultNameAuthBaseURL    = "https://nameauthority.example.org"
	defaultVendorCircBaseURL  = "https://circulation.example.com/api"
	defaultClassifyBaseURL    = "https://classify.example.org"
)

func defaultSource(baseURL string) SourceHTTP {
	return SourceHTTP{
		Enabled:           true,
		BaseURL:           baseURL,
		RequestsPerSecond: defaultSourceRPS,
		TimeoutSeconds:    defaultSourceTimeoutSeconds,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			PolicyPath: defaultPolicyPath,
		},
		Resolver: Resolver{
			MaxDepth:    defaultResolverMaxDepth,
			MinStrength: defaultResolverMinStrength,
		},
		Consolidation: Consolidation{
			AttachThreshold: defaultAttachThreshold,
			MergeThreshold:  defaultMergeThreshold,
			TitleWeight:     defaultTitleWeight,
			AuthorWeight:    defaultAuthorWeight,
		},
		Batch: Batch{
			WorksetSize:        defaultWorksetSize,
			Workers:            defaultBatchWorkers,
			ItemTimeoutSeconds: defaultItemTimeoutSeconds,
			PlateauPasses:      defaultPlateauPasses,
		},
		Sources: Sources{
			OpenCatalog: defaultSource(defaultOpenCatalogBaseURL),
			Bookmart:    defaultSource(defaultBookmartBaseURL),
			NameAuth:    defaultSource(defaultNameAuthBaseURL),
			VendorCirc:  defaultSource(defaultVendorCircBaseURL),
			Classify:    defaultSource(defaultClassifyBaseURL),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
