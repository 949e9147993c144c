package wordpress

import (
	"fmt"
	"strings"

	"github.com/vuldin/socrev-cms/pkg/config"
)

// Config holds the WordPress connection settings.
type Config struct {
	BaseURL  string // site root, e.g. https://wp.socialistrevolution.org
	Username string
	Password string
}

// LoadConfig reads the WordPress configuration from the environment.
func LoadConfig() (Config, error) {
	baseURL := strings.TrimRight(config.GetEnv("CMS_URL", ""), "/")
	if baseURL == "" {
		return Config{}, fmt.Errorf("CMS_URL is required")
	}
	return Config{
		BaseURL:  baseURL,
		Username: config.GetEnv("CMS_USER", ""),
		Password: config.GetEnv("CMS_PASSWORD", ""),
	}, nil
}

// NewClientFromConfig creates a WordPress client from a loaded configuration.
func NewClientFromConfig(cfg Config) *Client {
	c := NewClient(cfg.BaseURL)
	c.username = cfg.Username
	c.password = cfg.Password
	return c
}
