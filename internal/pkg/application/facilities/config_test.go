package facilities

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/matryer/is"
)

func TestLoadConfig(t *testing.T) {
	is, config := setupConfigTest(t)

	is.Equal(config.Name, "Facilities")
	is.Equal(len(config.Tenants), 1) // should have a single tenant
}

func TestLoadTenant(t *testing.T) {
	is, config := setupConfigTest(t)
	tenant := config.Tenants[0]

	is.Equal(tenant.ID, "default")
	is.Equal(tenant.Name, "Kommunen")
	is.Equal(tenant.PageSize, DefaultPageSize) // page size should default when omitted
}

func TestLoadFacilities(t *testing.T) {
	is, config := setupConfigTest(t)
	facilities := config.Tenants[0].Facilities

	is.Equal(len(facilities), 2) // should find two facilities

	is.Equal(facilities[0].ID, "beach-1")
	is.Equal(facilities[0].Location.Latitude, 62.4308)
	is.Equal(facilities[0].SeeAlso, []string{"https://example.com/beaches/1"})

	_, err := uuid.Parse(facilities[1].ID)
	is.NoErr(err) // a facility without id should be given a generated one
}

func TestGeneratedIDsAreStable(t *testing.T) {
	is, config := setupConfigTest(t)
	_, reloaded := setupConfigTest(t)

	generated := config.Tenants[0].Facilities[1].ID
	is.Equal(reloaded.Tenants[0].Facilities[1].ID, generated) // reloading should not mint a new id

	other := generatedID("other", config.Tenants[0].Facilities[1])
	is.True(other != generated) // tenants should not share generated ids
}

func TestLoadUpstreams(t *testing.T) {
	is, config := setupConfigTest(t)
	upstreams := config.Tenants[0].Upstreams

	is.Equal(len(upstreams), 2) // should find two upstreams
	is.Equal(upstreams[0].Endpoint, "http://lolcathost:1234/api")
	is.Equal(upstreams[0].Tenant, "default") // tenant should default to the local one
	is.Equal(upstreams[1].Tenant, "other")
}

func setupConfigTest(t *testing.T) (*is.I, *Config) {
	is := is.New(t)
	cfgData := bytes.NewBuffer([]byte(configFile))
	config, err := LoadConfiguration(cfgData)
	is.NoErr(err)

	return is, config
}

var configFile string = `
name: Facilities
tenants:
  - id: default
    name: Kommunen
    facilities:
    - id: beach-1
      name: Hartungviken
      category: beach
      location:
        latitude: 62.4308
        longitude: 17.4286
      seeAlso:
      - https://example.com/beaches/1
    - name: Motionsspåret
      category: exercisetrail
    upstreams:
    - endpoint: http://lolcathost:1234/api
    - endpoint: http://lolcathost:5678/api
      tenant: other
`
