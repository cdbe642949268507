package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// TagProperty redirects a result field to tag creation instead of a property write.
const TagProperty = "TAG"

// Config holds all application configuration
type Config struct {
	Alfresco  AlfrescoConfig
	GenAI     GenAIConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Applier   ApplierConfig
	Listener  ListenerConfig
	Rendition RenditionConfig
	Content   ContentConfig
	OTEL      OTELConfig
	Log       LogConfig
	Admin     AdminConfig
}

// AlfrescoConfig holds the content repository connection
type AlfrescoConfig struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// GenAIConfig holds the AI enrichment service connection
type GenAIConfig struct {
	URL            string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host          string
	Port          int
	Password      string
	DB            int
	EventsChannel string
	TermCacheTTL  time.Duration
}

// DatabaseConfig holds the batch run ledger database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// ApplierConfig drives batch passes
type ApplierConfig struct {
	Action           string
	RootFolderID     string
	Query            string
	PageSize         int
	Workers          int
	Interval         time.Duration
	ClassifyTermList string
}

// ListenerConfig drives the event-reactive completion
type ListenerConfig struct {
	Actions           []string
	EventTimeout      time.Duration
	Workers           int
	ContentNodeType   string
	RenditionNodeType string
}

// RenditionConfig names the derived content required by text actions
type RenditionConfig struct {
	Kind string
}

// ContentConfig holds the aspect and property names each action writes.
type ContentConfig struct {
	Summary             SummaryFields
	Classify            ClassifyFields
	Describe            DescribeFields
	EntityLinksWikidata EntityLinkFields
	EntityLinksDBpedia  EntityLinkFields
}

// SummaryFields maps a summary result onto the document
type SummaryFields struct {
	Aspect          string
	SummaryProperty string
	TagsProperty    string
	ModelProperty   string
}

// ClassifyFields maps a term result onto the document
type ClassifyFields struct {
	Aspect        string
	TermsProperty string
	TermProperty  string
	ModelProperty string
}

// DescribeFields maps a description result onto the picture
type DescribeFields struct {
	Aspect              string
	DescriptionProperty string
	ModelProperty       string
}

// EntityLinkFields maps entity links onto the document. Empty property names are not persisted.
type EntityLinkFields struct {
	Aspect            string
	LabelsProperty    string
	LinksProperty     string
	TypeListsProperty string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// AdminConfig holds the health and ledger HTTP endpoint of the long-running
// commands. ADMIN_ADDR=off disables it.
type AdminConfig struct {
	Addr string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Env   string
	Level string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Alfresco: AlfrescoConfig{
			URL:      getEnv("ALFRESCO_URL", "http://localhost:8080"),
			Username: getEnv("ALFRESCO_USERNAME", "admin"),
			Password: getEnv("ALFRESCO_PASSWORD", "admin"),
			Timeout:  getEnvAsDuration("ALFRESCO_TIMEOUT", 30*time.Second),
		},
		GenAI: GenAIConfig{
			URL:            getEnv("GENAI_URL", "http://localhost:8506"),
			ConnectTimeout: getEnvAsDuration("GENAI_CONNECT_TIMEOUT", 30*time.Second),
			RequestTimeout: getEnvAsDuration("GENAI_REQUEST_TIMEOUT", 1200*time.Second),
			RateLimitRPS:   getEnvAsFloat("GENAI_RATE_LIMIT_RPS", 2),
			RateLimitBurst: getEnvAsInt("GENAI_RATE_LIMIT_BURST", 2),
		},
		Redis: RedisConfig{
			Host:          getEnv("REDIS_HOST", "localhost"),
			Port:          getEnvAsInt("REDIS_PORT", 6379),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			EventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "alfresco:events"),
			TermCacheTTL:  getEnvAsDuration("REDIS_TERM_CACHE_TTL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("LEDGER_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "docenricher"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Applier: ApplierConfig{
			Action:           getEnv("APPLIER_ACTION", "SUMMARY"),
			RootFolderID:     getEnv("APPLIER_ROOT_FOLDER", "-root-"),
			Query:            getEnv("APPLIER_QUERY", ""),
			PageSize:         getEnvAsInt("APPLIER_PAGE_SIZE", 100),
			Workers:          getEnvAsInt("APPLIER_WORKERS", 2),
			Interval:         getEnvAsDuration("APPLIER_INTERVAL", 0),
			ClassifyTermList: getEnv("APPLIER_CLASSIFY_TERM_LIST", ""),
		},
		Listener: ListenerConfig{
			Actions:           getEnvAsList("LISTENER_ACTIONS", []string{"SUMMARY", "CLASSIFY", "DESCRIBE", "ENTITYLINKWIKIDATA", "ENTITYLINKDBPEDIA"}),
			EventTimeout:      getEnvAsDuration("LISTENER_EVENT_TIMEOUT", 25*time.Minute),
			Workers:           getEnvAsInt("LISTENER_WORKERS", 2),
			ContentNodeType:   getEnv("LISTENER_CONTENT_NODE_TYPE", "cm:content"),
			RenditionNodeType: getEnv("LISTENER_RENDITION_NODE_TYPE", "cm:thumbnail"),
		},
		Rendition: RenditionConfig{
			Kind: getEnv("RENDITION_KIND", "pdf"),
		},
		Content: ContentConfig{
			Summary: SummaryFields{
				Aspect:          getEnv("CONTENT_SUMMARY_ASPECT", "genai:summarizable"),
				SummaryProperty: getEnv("CONTENT_SUMMARY_SUMMARY_PROPERTY", "genai:summary"),
				TagsProperty:    getEnv("CONTENT_SUMMARY_TAGS_PROPERTY", TagProperty),
				ModelProperty:   getEnv("CONTENT_SUMMARY_MODEL_PROPERTY", "genai:llmSummary"),
			},
			Classify: ClassifyFields{
				Aspect:        getEnv("CONTENT_CLASSIFY_ASPECT", "genai:classifiable"),
				TermsProperty: getEnv("CONTENT_CLASSIFY_TERMS_PROPERTY", "genai:terms"),
				TermProperty:  getEnv("CONTENT_CLASSIFY_TERM_PROPERTY", "genai:term"),
				ModelProperty: getEnv("CONTENT_CLASSIFY_MODEL_PROPERTY", "genai:llmClassify"),
			},
			Describe: DescribeFields{
				Aspect:              getEnv("CONTENT_DESCRIPTION_ASPECT", "genai:descriptable"),
				DescriptionProperty: getEnv("CONTENT_DESCRIPTION_DESCRIPTION_PROPERTY", "genai:description"),
				ModelProperty:       getEnv("CONTENT_DESCRIPTION_MODEL_PROPERTY", "genai:llmDescription"),
			},
			EntityLinksWikidata: EntityLinkFields{
				Aspect:            getEnv("CONTENT_ENTITYLINKS_WIKIDATA_ASPECT", "genai:entitylinkswikidata"),
				LabelsProperty:    getEnv("CONTENT_ENTITYLINKS_WIKIDATA_LABELS_PROPERTY", ""),
				LinksProperty:     getEnv("CONTENT_ENTITYLINKS_WIKIDATA_LINKS_PROPERTY", "genai:linksWikidata"),
				TypeListsProperty: getEnv("CONTENT_ENTITYLINKS_WIKIDATA_TYPELISTS_PROPERTY", ""),
			},
			EntityLinksDBpedia: EntityLinkFields{
				Aspect:            getEnv("CONTENT_ENTITYLINKS_DBPEDIA_ASPECT", "genai:entitylinksdbpedia"),
				LabelsProperty:    getEnv("CONTENT_ENTITYLINKS_DBPEDIA_LABELS_PROPERTY", ""),
				LinksProperty:     getEnv("CONTENT_ENTITYLINKS_DBPEDIA_LINKS_PROPERTY", "genai:linksDBpedia"),
				TypeListsProperty: getEnv("CONTENT_ENTITYLINKS_DBPEDIA_TYPELISTS_PROPERTY", ""),
			},
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "docenricher"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Log: LogConfig{
			Env:   getEnv("APP_ENV", "production"),
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Admin: AdminConfig{
			Addr: getEnv("ADMIN_ADDR", ":8081"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every command depends on. Action kinds are
// validated separately against the dispatcher.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Alfresco.URL) == "" {
		errs = append(errs, errors.New("ALFRESCO_URL is required"))
	}
	if strings.TrimSpace(c.GenAI.URL) == "" {
		errs = append(errs, errors.New("GENAI_URL is required"))
	}
	if c.Applier.Workers <= 0 {
		errs = append(errs, fmt.Errorf("APPLIER_WORKERS must be positive, got %d", c.Applier.Workers))
	}
	if c.Listener.Workers <= 0 {
		errs = append(errs, fmt.Errorf("LISTENER_WORKERS must be positive, got %d", c.Listener.Workers))
	}
	if c.Applier.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("APPLIER_PAGE_SIZE must be positive, got %d", c.Applier.PageSize))
	}
	if strings.TrimSpace(c.Rendition.Kind) == "" {
		errs = append(errs, errors.New("RENDITION_KIND is required"))
	}

	aspects := map[string]string{
		"CONTENT_SUMMARY_ASPECT":              c.Content.Summary.Aspect,
		"CONTENT_CLASSIFY_ASPECT":             c.Content.Classify.Aspect,
		"CONTENT_DESCRIPTION_ASPECT":          c.Content.Describe.Aspect,
		"CONTENT_ENTITYLINKS_WIKIDATA_ASPECT": c.Content.EntityLinksWikidata.Aspect,
		"CONTENT_ENTITYLINKS_DBPEDIA_ASPECT":  c.Content.EntityLinksDBpedia.Aspect,
	}
	for key, value := range aspects {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	if c.Content.Classify.TermsProperty == TagProperty {
		errs = append(errs, errors.New("CONTENT_CLASSIFY_TERMS_PROPERTY cannot be TAG"))
	}

	return errors.Join(errs...)
}

// Enabled reports whether the admin endpoint should listen.
func (c *AdminConfig) Enabled() bool {
	addr := strings.TrimSpace(c.Addr)
	return addr != "" && !strings.EqualFold(addr, "off")
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
