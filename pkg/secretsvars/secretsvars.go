// Package secretsvars resolves vault://KEY references inside extra-vars
// against one of several pluggable secret backends, so a playbook author
// can write `db_password: vault://prod/db/password` instead of a literal
// in the extra-vars map.
//
// Grounded on the teacher's cmd/spot/main.go SecretsProvider option group
// (provider selection: none/internal/vault/aws/ansible-vault) and
// pkg/secrets (the provider implementations themselves); the vault://
// resolution convention is new, since the teacher injects secrets as
// plain extra-vars rather than by reference.
package secretsvars

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbouchez/forge/pkg/secrets"
)

const vaultPrefix = "vault://"

// ProviderOptions selects and configures one secrets.Provider backend,
// mirroring the teacher's nested SecretsProvider go-flags group.
type ProviderOptions struct {
	Provider string `long:"provider" choice:"none" choice:"internal" choice:"vault" choice:"aws" choice:"ansible-vault" default:"none" description:"secrets provider for vault:// extra-vars"` //nolint:staticcheck // go-flags choice tags
	Key      string `long:"key" description:"decryption key (internal/ansible-vault providers)"`
	Conn     string `long:"conn" default:"forge.db" description:"database connection string (internal provider) or vault file path (ansible-vault provider)"`

	Vault struct {
		Token string `long:"token" env:"VAULT_TOKEN" description:"HashiCorp Vault token"`
		Path  string `long:"path" description:"HashiCorp Vault secret path"`
		URL   string `long:"url" description:"HashiCorp Vault address"`
	} `group:"vault" namespace:"vault" env-namespace:"VAULT"`

	Aws struct {
		Region    string `long:"region" description:"AWS region"`
		AccessKey string `long:"access-key" env:"AWS_ACCESS_KEY_ID" description:"AWS access key"`
		SecretKey string `long:"secret-key" env:"AWS_SECRET_ACCESS_KEY" description:"AWS secret key"`
	} `group:"aws" namespace:"aws" env-namespace:"AWS"`
}

// buildProvider constructs the secrets.Provider opts selects, or nil if
// opts.Provider is "none".
func buildProvider(opts ProviderOptions) (secrets.Provider, error) {
	switch opts.Provider {
	case "", "none":
		return nil, nil
	case "internal":
		return secrets.NewInternalProvider(opts.Conn, []byte(opts.Key))
	case "vault":
		return secrets.NewHashiVaultProvider(opts.Vault.URL, opts.Vault.Path, opts.Vault.Token)
	case "aws":
		return secrets.NewAwsSecretsManagerProvider(context.Background(), opts.Aws.Region, opts.Aws.AccessKey, opts.Aws.SecretKey)
	case "ansible-vault":
		return secrets.NewAnsibleVaultProvider(opts.Conn, opts.Key)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", opts.Provider)
	}
}

// Resolve returns a copy of extraVars with every vault://KEY value
// replaced by the secret provider's lookup of KEY. Values that don't use
// the vault:// prefix pass through unchanged. If no provider is
// configured, a vault:// value is an error rather than silently kept
// literal, since that would leak the intended reference into the run.
func Resolve(extraVars map[string]string, opts ProviderOptions) (map[string]string, error) {
	out := make(map[string]string, len(extraVars))
	var provider secrets.Provider
	var providerErr error
	var providerBuilt bool

	for k, v := range extraVars {
		key, ok := strings.CutPrefix(v, vaultPrefix)
		if !ok {
			out[k] = v
			continue
		}
		if !providerBuilt {
			provider, providerErr = buildProvider(opts)
			providerBuilt = true
		}
		if providerErr != nil {
			return nil, fmt.Errorf("build secrets provider: %w", providerErr)
		}
		if provider == nil {
			return nil, fmt.Errorf("extra-var %q references %s but no secrets provider is configured", k, v)
		}
		val, err := provider.Get(key)
		if err != nil {
			return nil, fmt.Errorf("resolve %s for extra-var %q: %w", v, k, err)
		}
		out[k] = val
	}
	return out, nil
}
