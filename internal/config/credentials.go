package config

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/vaisest/fakefurbot/internal/catalog"
	"github.com/vaisest/fakefurbot/internal/platform"
	"github.com/vaisest/fakefurbot/internal/secrets"
)

// Credential sources.
const (
	SourceVault   = "vault"
	SourceEnv     = "env"
	SourceMissing = "missing"
)

// SecretLookup reads a named secret. *secrets.Store satisfies it.
type SecretLookup interface {
	Lookup(ctx context.Context, name, accessor string) (string, error)
}

// Credentials are the account credentials for both remote services.
type Credentials struct {
	Platform platform.Credentials
	Catalog  catalog.Credentials
	// Sources maps each well-known secret name to where its value came from.
	Sources map[string]string
}

// Missing lists the well-known names that resolved to nothing.
func (c *Credentials) Missing() []string {
	var out []string
	for _, name := range secrets.KnownNames {
		if c.Sources[name] == SourceMissing {
			out = append(out, name)
		}
	}
	return out
}

// ResolveCredentials reads every well-known credential from the vault,
// falling back to FURBOT_<NAME> env vars. vault may be nil.
func ResolveCredentials(ctx context.Context, vault SecretLookup, accessor string) (*Credentials, error) {
	values := make(map[string]string, len(secrets.KnownNames))
	sources := make(map[string]string, len(secrets.KnownNames))

	for _, name := range secrets.KnownNames {
		if vault != nil {
			v, err := vault.Lookup(ctx, name, accessor)
			if err != nil {
				return nil, fmt.Errorf("reading %s from vault: %w", name, err)
			}
			if v != "" {
				values[name], sources[name] = v, SourceVault
				continue
			}
		}
		if v := viper.GetString(name); v != "" {
			values[name], sources[name] = v, SourceEnv
			log.Debug().Str("secret", name).Msg("credential_from_env")
			continue
		}
		sources[name] = SourceMissing
	}

	return &Credentials{
		Platform: platform.Credentials{
			ClientID:     values[secrets.PlatformClientID],
			ClientSecret: values[secrets.PlatformClientSecret],
			Username:     values[secrets.PlatformUsername],
			Password:     values[secrets.PlatformPassword],
		},
		Catalog: catalog.Credentials{
			Username: values[secrets.CatalogUsername],
			APIKey:   values[secrets.CatalogAPIKey],
		},
		Sources: sources,
	}, nil
}
