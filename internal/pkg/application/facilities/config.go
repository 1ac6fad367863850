package facilities

import (
	"io"
	"strings"

	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v2"
)

const DefaultPageSize int = 25

type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type FacilityConfig struct {
	ID          string          `yaml:"id"`
	Name        string          `yaml:"name"`
	Category    string          `yaml:"category"`
	Description string          `yaml:"description"`
	Location    *LocationConfig `yaml:"location"`
	SeeAlso     []string        `yaml:"seeAlso"`
}

// UpstreamConfig points at the entry point of another facilities service
// whose collections are federated into ours.
type UpstreamConfig struct {
	Endpoint string `yaml:"endpoint"`
	// Tenant is sent to the upstream service, defaults to the local tenant id.
	Tenant string `yaml:"tenant"`
}

type Tenant struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	PageSize   int              `yaml:"pageSize"`
	Facilities []FacilityConfig `yaml:"facilities"`
	Upstreams  []UpstreamConfig `yaml:"upstreams"`
}

type Config struct {
	Name    string   `yaml:"name"`
	Tenants []Tenant `yaml:"tenants"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	for t := range cfg.Tenants {
		tenant := &cfg.Tenants[t]

		if tenant.PageSize <= 0 {
			tenant.PageSize = DefaultPageSize
		}

		for f := range tenant.Facilities {
			if strings.TrimSpace(tenant.Facilities[f].ID) == "" {
				tenant.Facilities[f].ID = generatedID(tenant.ID, tenant.Facilities[f])
			}
		}

		for u := range tenant.Upstreams {
			if tenant.Upstreams[u].Tenant == "" {
				tenant.Upstreams[u].Tenant = tenant.ID
			}
		}
	}

	return cfg, nil
}

// generatedID derives an id from what identifies a facility in the config,
// so the same facility keeps its id across restarts.
func generatedID(tenant string, f FacilityConfig) string {
	name := tenant + "/" + f.Category + "/" + f.Name
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
